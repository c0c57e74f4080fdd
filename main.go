// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/caldera-launcher/caldera/cmd/caldera"

func main() {
	cmd.Execute()
}
