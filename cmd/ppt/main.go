// Command ppt drives the travel-guide generation pipeline: it runs agent
// tasks against a model backend, or hands their prompts to a human for the
// manual copy-paste path, and keeps the resulting entities in a project
// database under .ppt.
package main

func main() {
	Execute()
}
