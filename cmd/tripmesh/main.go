// Command tripmesh serves and queries the city short trip planner.
package main

func main() {
	Execute()
}
