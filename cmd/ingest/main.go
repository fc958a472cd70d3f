package main

import (
	"ingestengine/cmd/ingest/cmd"
)

func main() {
	cmd.Execute()
}
