package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/emberplus/emberd/internal/ember"
)

// runShell drives an interactive command loop against client, grounded on
// the teacher's mash-controller shell: a flat verb + args dispatch over a
// single readline prompt.
func runShell(c *client) {
	rl, err := readline.New("emberctl> ")
	if err != nil {
		fmt.Printf("Error: readline: %v\n", err)
		return
	}
	defer rl.Close()

	printHelp()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt (Ctrl-C)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		verb, args := strings.ToLower(fields[0]), fields[1:]

		switch verb {
		case "help", "?":
			printHelp()
		case "dir":
			cmdDirectory(c, args)
		case "sub":
			cmdSubscribe(c, args)
		case "unsub":
			cmdUnsubscribe(c, args)
		case "set":
			cmdSet(c, args)
		case "connect":
			cmdConnect(c, args)
		case "quit", "exit", "q":
			return
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", verb)
		}
	}
}

func printHelp() {
	fmt.Println(`
emberctl commands:
  dir <path>                         - GetDirectory on <path>, or root if omitted
  sub <path>                         - Subscribe to <path>
  unsub <path>                       - Unsubscribe from <path>
  set <path> <value>                 - Set a parameter's value
  connect <path> <target> <src...>   - Matrix connect: union sources onto target
  help                               - Show this help
  quit                               - Exit

  <path> is a dot-joined qualified path, e.g. 1.2.3`)
}

func cmdDirectory(c *client, args []string) {
	if len(args) == 0 {
		req := &ember.Root{Elements: []*ember.Element{
			{Kind: ember.KindCommand, Cmd: ember.CommandGetDirectory},
		}}
		send(c, req)
		return
	}
	sendCommand(c, args[0], ember.CommandGetDirectory)
}

func cmdSubscribe(c *client, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: sub <path>")
		return
	}
	sendCommand(c, args[0], ember.CommandSubscribe)
}

func cmdUnsubscribe(c *client, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: unsub <path>")
		return
	}
	sendCommand(c, args[0], ember.CommandUnsubscribe)
}

func sendCommand(c *client, path string, cmd ember.Command) {
	req := &ember.Root{Elements: []*ember.Element{
		{
			Kind: pathHostKind, Qualified: true, Path: path,
			Children: []*ember.Element{{Kind: ember.KindCommand, Cmd: cmd}},
		},
	}}
	send(c, req)
}

func cmdSet(c *client, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: set <path> <value>")
		return
	}
	req := &ember.Root{Elements: []*ember.Element{
		{Kind: ember.KindParameter, Qualified: true, Path: args[0], Value: parseValue(args[1]), HasValue: true},
	}}
	send(c, req)
}

func cmdConnect(c *client, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: connect <path> <target> <source...>")
		return
	}
	target, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("Invalid target: %v\n", err)
		return
	}
	sources := make([]int, 0, len(args)-2)
	for _, s := range args[2:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			fmt.Printf("Invalid source %q: %v\n", s, err)
			return
		}
		sources = append(sources, n)
	}

	req := &ember.Root{Elements: []*ember.Element{
		{
			Kind: ember.KindMatrix, Qualified: true, Path: args[0],
			Connections: []ember.Connection{
				{Target: target, Sources: sources, Operation: ember.MatrixOperationConnect, HasOp: true},
			},
		},
	}}
	send(c, req)
}

// pathHostKind is an ordinary Node wrapper around a Command addressed at
// a qualified path; the dispatcher only inspects the Command's own Cmd
// field and the wrapping element's Path, not its Kind.
const pathHostKind = ember.KindNode

func send(c *client, req *ember.Root) {
	if err := c.Send(req); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func parseValue(s string) any {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return strings.Trim(s, `"'`)
}
