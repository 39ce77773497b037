package main

import "github.com/frahmantamala/creatorpay/cmd"

func main() {
	cmd.Execute()
}
