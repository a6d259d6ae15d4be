package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	args := os.Args[1:]
	cmd := "chat"
	if len(args) > 0 && !isFlag(args[0]) {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "chat":
		err = runChat(args)
	case "ask":
		err = runAsk(args)
	case "agents":
		err = runAgents(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'kaia --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func isFlag(s string) bool {
	return len(s) > 0 && s[0] == '-'
}

func showUsage() {
	fmt.Println(`kaia - multi-agent LLM workflow library

USAGE:
    kaia [COMMAND] [FLAGS] [ARGS]

COMMANDS:
    chat MESSAGE    Send one message to an agent and print the reply (default)
    ask QUESTION    Answer a natural-language question against the configured
                    SQLite database
    agents          List configured agents

FLAGS:
    -h, --help      Show this help message
    --config PATH   Config file path (default: ./config.yaml)
    --session ID    Session to append the conversation to (chat only)

EXAMPLES:
    kaia chat "What is the capital of France?"
    kaia chat --session support_42 "@billing my invoice is wrong"
    kaia ask "How many orders were placed last week?"`)
}
