// main.go
package main

import (
	"fmt"

	"Windfall/cmd"
)

const banner = `
 __      __.__            .___ _____       .__  .__
/  \    /  \__| ____    __| _// ____\____  |  | |  |
\   \/\/   /  |/    \  / __ |\   __\\__  \ |  | |  |
 \        /|  |   |  \/ /_/ | |  |   / __ \|  |_|  |__
  \__/\  / |__|___|  /\____ | |__|  (____  /____/____/
       \/          \/      \/            \/

	Autonomous spot market scanner and trader
[]=========================================================================[]`

func main() {
	fmt.Println(banner)
	cmd.Execute()
}
