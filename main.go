// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/xcross/xcross/cmd/xcross"

func main() {
	cmd.Execute()
}
