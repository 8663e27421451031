// Command admin inspects a gemrush database from the command line. It
// reads the same sqlite file the server writes, so it works against a
// live database as well as a copied-off one.
//
//	admin entities [-db path] [-limit n]
//	admin entity [-db path] -token t | -id n
//	admin chunks [-db path] [-limit n]
//	admin tile [-db path] -x n -y n
//
// Output is one JSON object per line, ready for jq.
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
	switch os.Args[1] {
	case "entities":
		entitiesCmd(os.Args[2:])
	case "entity":
		entityCmd(os.Args[2:])
	case "chunks":
		chunksCmd(os.Args[2:])
	case "tile":
		tileCmd(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  entities   list persisted entities, most recently seen first
  entity     show one entity in full, by -token or -id
  chunks     summarise the persisted chunk set
  tile       print the stored tile at world position -x,-y`)
}
