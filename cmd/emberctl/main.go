// Command emberctl is a minimal interactive client for manually exercising
// a running emberd server: get-directory, subscribe/unsubscribe, parameter
// set, and matrix connect, each issued as a single line of input.
//
// Usage:
//
//	emberctl [flags]
//
// Flags:
//
//	-addr string   Server address to dial (default "127.0.0.1:9000")
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

var addr = flag.String("addr", "127.0.0.1:9000", "Server address to dial")

func main() {
	flag.Parse()

	client, err := newClient(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	log.SetFlags(0)
	runShell(client)
}
