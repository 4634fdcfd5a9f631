package main

import (
	"os"

	"count-words/app"
)

func main() {
	os.Exit(app.Run())
}
