package config

import "errors"

// ErrInvalidConfig is returned by Validate when one or more settings are unusable.
var ErrInvalidConfig = errors.New("config: invalid configuration")
