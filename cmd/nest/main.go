// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/nest/cmd/nest/cmd"
)

func main() {
	cmd.Execute()
}
