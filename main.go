package main

import "github.com/pinceletas/user-auth-service/cmd"

func main() {
	cmd.Execute()
}
