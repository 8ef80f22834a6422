// Command trackflow tracks issues, sprints and epics on kanban and scrum boards.
package main

import "github.com/twiced-technology-gmbh/trackflow/cmd"

func main() {
	cmd.Execute()
}
