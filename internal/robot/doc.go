// Package robot holds the configured signal targets.
//
// A robot is reached over exactly one protocol (http, websocket, mqtt or
// serial) and may override the payload of individual signal types through
// its commands map. The Registry validates configurations when they are
// loaded or added, persists every change through a Repository (a JSON file
// or SQLite) and hands out copies so dispatch always iterates a stable
// snapshot.
//
// Robots file format:
//
//	{
//	  "robots": [
//	    {
//	      "id": "arm-1",
//	      "name": "Desk arm",
//	      "protocol": "mqtt",
//	      "mqtt_broker": "localhost",
//	      "mqtt_topic": "robots/arm-1/cmd",
//	      "commands": {"wave_hand": {"speed": "fast"}}
//	    }
//	  ]
//	}
package robot
