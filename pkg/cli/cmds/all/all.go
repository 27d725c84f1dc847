// Package all imports all command sets for the shell.
package all

import (
	_ "github.com/robotalks/katwalk/pkg/cli/cmds/katwalk"
)
