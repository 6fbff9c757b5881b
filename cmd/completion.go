package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_passlock() {
    local cur prev words cword
    _init_completion || return

    local commands="init add get list ls search edit rm restore fav purge categories audit breach verify passwd gen emergency share shares redeem revoke backup restore-backup export import diff status compact keyring destroy help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        get)
            COMPREPLY=($(compgen -W "--show" -- "$cur"))
            ;;
        list|ls)
            COMPREPLY=($(compgen -W "--category --tag --fav --trash" -- "$cur"))
            ;;
        search)
            COMPREPLY=($(compgen -W "--deep" -- "$cur"))
            ;;
        audit)
            COMPREPLY=($(compgen -W "--breaches --timeout" -- "$cur"))
            ;;
        share)
            COMPREPLY=($(compgen -W "--to --ttl" -- "$cur"))
            ;;
        restore-backup)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--replace --overwrite" -- "$cur"))
            else
                _filedir
            fi
            ;;
        import)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--format" -- "$cur"))
            else
                _filedir
            fi
            ;;
        backup|export|diff)
            _filedir
            ;;
        emergency)
            COMPREPLY=($(compgen -W "add rm list request approve deny access" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _passlock passlock
`

const zshCompletion = `#compdef passlock

_passlock() {
    local -a commands
    commands=(
        'init:Create a new vault'
        'add:Add a new entry'
        'get:Show one entry'
        'list:List entries'
        'search:Find entries by query'
        'edit:Edit an entry'
        'rm:Move an entry to the trash'
        'restore:Restore an entry from the trash'
        'purge:Permanently delete an entry'
        'categories:List, rename or delete categories'
        'audit:Run security checks'
        'breach:Check one password against known breaches'
        'verify:Verify vault integrity'
        'passwd:Change the master password'
        'gen:Generate a random password'
        'emergency:Trusted-contact emergency access'
        'share:Seal one entry for a recipient'
        'shares:List shares'
        'redeem:Decrypt a received share'
        'revoke:Revoke a share'
        'backup:Write an encrypted archive'
        'restore-backup:Restore entries from an archive'
        'export:Export entries as plaintext JSON'
        'import:Import from external exports'
        'diff:Compare a backup with the live vault'
        'status:Show vault status'
        'compact:Reclaim unused disk space'
        'keyring:Manage the password in the OS keyring'
        'destroy:Delete the vault permanently'
        'help:Show help'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'passlock commands' commands
            ;;
        args)
            case "$words[2]" in
                emergency)
                    _values 'subcommand' add rm list request approve deny access
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
                backup|restore-backup|export|import|diff)
                    _files
                    ;;
            esac
            ;;
    esac
}

_passlock "$@"
`

const fishCompletion = `# passlock fish completion
set -l commands init add get list ls search edit rm restore fav purge categories audit breach verify passwd gen emergency share shares redeem revoke backup restore-backup export import diff status compact keyring destroy help completion

complete -c passlock -f
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a new vault'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a add -d 'Add a new entry'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a get -d 'Show one entry'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a list -d 'List entries'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a search -d 'Find entries by query'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a edit -d 'Edit an entry'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Move an entry to the trash'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a restore -d 'Restore an entry from the trash'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a purge -d 'Permanently delete an entry'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a audit -d 'Run security checks'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a verify -d 'Verify vault integrity'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change the master password'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a gen -d 'Generate a random password'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a emergency -d 'Trusted-contact emergency access'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a share -d 'Seal one entry for a recipient'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a backup -d 'Write an encrypted archive'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a restore-backup -d 'Restore entries from an archive'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a import -d 'Import from external exports'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage the password in the OS keyring'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a destroy -d 'Delete the vault permanently'
complete -c passlock -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate shell completions'

# keyring subcommands
complete -c passlock -n "__fish_seen_subcommand_from keyring" -a "save delete status"
# emergency subcommands
complete -c passlock -n "__fish_seen_subcommand_from emergency" -a "add rm list request approve deny access"
# completion shells
complete -c passlock -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
# file arguments
complete -c passlock -n "__fish_seen_subcommand_from backup restore-backup export import diff" -F
`
