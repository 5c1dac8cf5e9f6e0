package main

import (
	"context"

	"github.com/maltedev/listing-scraper/cmd/listing-scraper/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
