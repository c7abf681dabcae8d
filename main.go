package main

import "bptlab/dbcli"

func main() {
	dbcli.Init()
	dbcli.Execute()
}
