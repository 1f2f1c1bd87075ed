// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
)

var subcommandNames = []string{
	"init", "index", "watch", "status", "reset", "query", "install-hook", "completion", "help",
}

const bashCompletionTemplate = `_semfora_completions() {
  local cur="${COMP_WORDS[COMP_CWORD]}"
  COMPREPLY=($(compgen -W "%s" -- "$cur"))
}
complete -F _semfora_completions semfora
`

const zshCompletionTemplate = `#compdef semfora
_semfora() {
  local -a cmds
  cmds=(%s)
  _describe 'command' cmds
}
_semfora
`

const fishCompletionTemplate = `complete -c semfora -f -a "%s"
`

// runCompletion prints a static shell completion script listing the fixed
// subcommand set; there is no flag-level completion since the subcommand
// flag sets are small enough not to warrant it.
func runCompletion(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: semfora completion <bash|zsh|fish>")
	}
	names := joinSpace(subcommandNames)
	switch args[0] {
	case "bash":
		fmt.Fprintf(os.Stdout, bashCompletionTemplate, names)
	case "zsh":
		fmt.Fprintf(os.Stdout, zshCompletionTemplate, names)
	case "fish":
		fmt.Fprintf(os.Stdout, fishCompletionTemplate, names)
	default:
		return fmt.Errorf("unsupported shell %q (want bash, zsh, or fish)", args[0])
	}
	return nil
}

func joinSpace(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
