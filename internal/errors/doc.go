// Package errors provides structured, actionable error messages for vstore's
// configuration, server, persistence and command-line layers.
//
// The store, source and persist packages return plain wrapped errors and
// sentinels. The hub, the config loader and the CLI translate them into
// coded errors here: the hub serves them as JSON and the CLI prints them
// with Format.
//
// # Error Codes
//
// Each error has a unique code that maps to a short message, a detailed
// explanation and a documentation URL:
//   - E1xx: configuration (vstore.json)
//   - E2xx: server and hub
//   - E3xx: persistence
//   - E4xx: command line
//
// # Usage
//
//	err := errors.New("E102").
//	    WithOffset("vstore.json", data, syntaxErr.Offset).
//	    Wrap(syntaxErr)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E102: Invalid configuration file
//	//
//	//   vstore.json:3:14
//	//
//	//       2 │   "server": {
//	//   →   3 │     "port": 70x0,
//	//         │              ^
//	//       4 │   },
package errors
