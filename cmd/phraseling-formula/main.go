package main

import "github.com/oshokin/phraseling-formula/cmd/phraseling-formula/cmd"

func main() {
	cmd.Execute()
}
