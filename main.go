// api/main.go
package main

import "shopdemo/api/cmd"

func main() {
	cmd.Execute()
}
