package main

import "github.com/kernlab/nucleon/nucleon/cmd"

func main() {
	cmd.Execute()
}
