package cmd

import (
	"fmt"
)

const banner = `
  _  __               ____
 | |/ /___  ___ _ __ / ___| _   _ _ __   ___
 | ' // _ \/ _ \ '_ \\___ \| | | | '_ \ / __|
 | . \  __/  __/ |_) |___) | |_| | | | | (__
 |_|\_\___|\___| .__/|____/ \__, |_| |_|\___|
               |_|          |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Zero-Knowledge Config Sync - Version %s\x1b[0m\n\n", Version)
}
