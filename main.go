/*
Copyright © 2026 Deutsche Telekom AG
*/
package main

import "github.com/telekom/pod-identity-operator/cmd"

func main() {
	cmd.Execute()
}
