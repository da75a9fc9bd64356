package main

import (
	"fmt"
	"os"
)

func helper() {
	os.Exit(3)
}

func main() {
	defer fmt.Println("never printed")

	cleanup := func() { os.Exit(1) }
	_ = cleanup

	helper()
	os.Exit(2) // want "os.Exit call is forbidden in main function: os.Exit\\(2\\)"
}
