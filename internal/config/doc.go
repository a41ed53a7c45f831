// Package config provides configuration parsing for the vstore hub.
//
// The configuration is stored in vstore.json. This package handles loading,
// saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 7070,
//	    "autoCreate": false,
//	    "sendBuffer": 64
//	  },
//	  "log": {"level": "info", "format": "text"},
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "persist": {"backend": "file", "dir": ".vstore"},
//	  "stores": [
//	    {"name": "counter", "initial": 0, "persist": true}
//	  ],
//	  "files": [
//	    {"name": "flags", "path": "flags.yaml"}
//	  ]
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
