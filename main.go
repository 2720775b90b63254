// Command seniorflow drives features through a quality-gated development
// workflow: test stubs, architecture, object design and implementation.
package main

import "seniorflow/internal/cli"

func main() {
	cli.Execute()
}
