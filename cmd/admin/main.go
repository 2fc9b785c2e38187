package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "db":
		err = dbCmd(os.Stdout, os.Args[2:])
	case "stats":
		err = getCmd(os.Stdout, "stats", os.Args[2:])
	case "player":
		err = getCmd(os.Stdout, "player", os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin db [audits|totals] [-data dir] [-db path] [-player id] [-limit n]")
	fmt.Fprintln(os.Stderr, "       admin stats [-url base]")
	fmt.Fprintln(os.Stderr, "       admin player -id <uuid> [-url base]")
}
