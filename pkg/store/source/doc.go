// Package source provides read-only stores fed by events from outside the
// program: channels, timers and watched files.
//
// Every source does its work only while its store is active. The goroutine
// behind a source starts with the first subscriber and is signalled to exit
// when the last one leaves:
//
//	flags := source.File("flags.yaml", Flags{})
//	unsub := flags.Subscribe(func(f Flags) {
//	    applyFlags(f)
//	})
//	defer unsub()
package source
