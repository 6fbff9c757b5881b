package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/live-labs/passlock/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "add":
		runAdd(os.Args[2:])
	case "get", "show":
		runGet(os.Args[2:])
	case "list", "ls":
		runList(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "edit":
		runEdit(os.Args[2:])
	case "rm":
		runRm(os.Args[2:])
	case "restore":
		runRestore(os.Args[2:])
	case "fav":
		runFav(os.Args[2:])
	case "purge":
		runPurge(os.Args[2:])
	case "passwd":
		runPasswd(os.Args[2:])
	case "audit":
		runAudit(os.Args[2:])
	case "breach":
		runBreach(os.Args[2:])
	case "share":
		runShare(os.Args[2:])
	case "shares":
		runShares(os.Args[2:])
	case "redeem":
		runRedeem(os.Args[2:])
	case "revoke":
		runRevoke(os.Args[2:])
	case "backup":
		runBackup(os.Args[2:])
	case "restore-backup":
		runRestoreBackup(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "diff":
		runDiff(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "compact":
		runCompact(os.Args[2:])
	case "gen":
		runGen(os.Args[2:])
	case "categories":
		runCategories(os.Args[2:])
	case "emergency":
		runEmergency(os.Args[2:])
	case "keyring":
		runKeyring(os.Args[2:])
	case "destroy":
		runDestroy(os.Args[2:])
	case "completion":
		runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func requireArg(fs *flag.FlagSet, usage string) string {
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: passlock %s\n", usage)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	useKeyring := fs.Bool("keyring", false, "Save the master password in the OS keyring")
	parse(fs, args)
	cmd.Init(*useKeyring)
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Entry title")
	username := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password (prompted if omitted)")
	url := fs.String("url", "", "URL")
	notes := fs.String("notes", "", "Notes")
	category := fs.String("category", "", "Category")
	tags := fs.String("tags", "", "Comma-separated tags")
	generate := fs.Bool("gen", false, "Generate a random password")
	genLength := fs.Int("len", 20, "Generated password length")
	parse(fs, args)

	var tagList []string
	if *tags != "" {
		tagList = strings.Split(*tags, ",")
	}
	cmd.Add(*title, *username, *password, *url, *notes, *category, tagList, *generate, *genLength)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	show := fs.Bool("show", false, "Reveal the password")
	parse(fs, args)
	cmd.Get(requireArg(fs, "get [--show] <title|id>"), *show)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	category := fs.String("category", "", "Filter by category")
	tag := fs.String("tag", "", "Filter by tag")
	favorites := fs.Bool("fav", false, "Favorites only")
	trash := fs.Bool("trash", false, "Show trashed entries")
	parse(fs, args)
	cmd.List(*category, *tag, *favorites, *trash)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	deep := fs.Bool("deep", false, "Also match decrypted usernames, URLs and notes")
	parse(fs, args)
	cmd.Search(requireArg(fs, "search [--deep] <query>"), *deep)
}

func runEdit(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	parse(fs, args)
	cmd.Edit(requireArg(fs, "edit <title|id>"))
}

func runRm(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	parse(fs, args)
	cmd.Remove(requireArg(fs, "rm <title|id>"))
}

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	parse(fs, args)
	cmd.Restore(requireArg(fs, "restore <title|id>"))
}

func runFav(args []string) {
	fs := flag.NewFlagSet("fav", flag.ExitOnError)
	off := fs.Bool("off", false, "Remove from favorites")
	parse(fs, args)
	cmd.Favorite(requireArg(fs, "fav [--off] <title|id>"), *off)
}

func runPurge(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	emptyTrash := fs.Bool("trash", false, "Purge all expired trash entries")
	force := fs.Bool("force", false, "Skip confirmation")
	parse(fs, args)
	ref := ""
	if !*emptyTrash {
		ref = requireArg(fs, "purge [--force] <title|id> | purge --trash")
	}
	cmd.PurgeCmd(ref, *emptyTrash, *force)
}

func runPasswd(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	parse(fs, args)
	cmd.Passwd()
}

func runAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	breaches := fs.Bool("breaches", false, "Also check passwords against the breach database")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-lookup timeout for breach checks")
	parse(fs, args)
	cmd.Audit(*breaches, *timeout)
}

func runBreach(args []string) {
	fs := flag.NewFlagSet("breach", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Second, "Lookup timeout")
	parse(fs, args)
	cmd.Breach(*timeout)
}

func runShare(args []string) {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	recipient := fs.String("to", "", "Recipient identifier")
	ttl := fs.Duration("ttl", 24*time.Hour, "Share lifetime")
	parse(fs, args)
	if *recipient == "" {
		fmt.Fprintln(os.Stderr, "Usage: passlock share --to <recipient> [--ttl 24h] <title|id>")
		os.Exit(1)
	}
	cmd.Share(requireArg(fs, "share --to <recipient> <title|id>"), *recipient, *ttl)
}

func runShares(args []string) {
	fs := flag.NewFlagSet("shares", flag.ExitOnError)
	parse(fs, args)
	cmd.Shares()
}

func runRedeem(args []string) {
	fs := flag.NewFlagSet("redeem", flag.ExitOnError)
	parse(fs, args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: passlock redeem <bundle> <key>")
		os.Exit(1)
	}
	cmd.Redeem(fs.Arg(0), fs.Arg(1))
}

func runRevoke(args []string) {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	parse(fs, args)
	cmd.Revoke(requireArg(fs, "revoke <share-id>"))
}

func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	parse(fs, args)
	cmd.Backup(requireArg(fs, "backup <file>"))
}

func runRestoreBackup(args []string) {
	fs := flag.NewFlagSet("restore-backup", flag.ExitOnError)
	replace := fs.Bool("replace", false, "Replace all current entries instead of merging")
	overwrite := fs.Bool("overwrite", false, "Overwrite duplicates when merging")
	parse(fs, args)
	cmd.RestoreBackup(requireArg(fs, "restore-backup [--replace|--overwrite] <file>"), *replace, *overwrite)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	parse(fs, args)
	cmd.Export(requireArg(fs, "export <file>"))
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	format := fs.String("format", "", "Source format: csv, json or chrome (detected from extension if omitted)")
	parse(fs, args)
	cmd.Import(requireArg(fs, "import [--format csv|json|chrome] <file>"), *format)
}

func runDiff(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	parse(fs, args)
	cmd.Diff(requireArg(fs, "diff <backup-file>"))
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	parse(fs, args)
	cmd.Verify()
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parse(fs, args)
	cmd.Status()
}

func runCompact(args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)
	cmd.Compact()
}

func runGen(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	length := fs.Int("len", 20, "Password length")
	noSymbols := fs.Bool("no-symbols", false, "Letters and digits only")
	parse(fs, args)
	cmd.Gen(*length, *noSymbols)
}

func runCategories(args []string) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	deleteName := fs.String("delete", "", "Delete a category (entries become uncategorized)")
	renameFrom := fs.String("rename", "", "Category to rename")
	renameTo := fs.String("to", "", "New category name")
	parse(fs, args)
	if *renameFrom != "" && *renameTo == "" {
		fmt.Fprintln(os.Stderr, "Usage: passlock categories --rename <old> --to <new>")
		os.Exit(1)
	}
	cmd.Categories(*deleteName, *renameFrom, *renameTo)
}

func runEmergency(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passlock emergency <add|rm|list|request|approve|deny|access>")
		os.Exit(1)
	}
	rest := args[1:]
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("emergency add", flag.ExitOnError)
		wait := fs.Duration("wait", 7*24*time.Hour, "Waiting period before access opens")
		parse(fs, rest)
		cmd.EmergencyAdd(requireArg(fs, "emergency add [--wait 168h] <name>"), *wait)
	case "rm":
		fs := flag.NewFlagSet("emergency rm", flag.ExitOnError)
		parse(fs, rest)
		cmd.EmergencyRemove(requireArg(fs, "emergency rm <contact-id>"))
	case "list":
		cmd.EmergencyList()
	case "request":
		fs := flag.NewFlagSet("emergency request", flag.ExitOnError)
		parse(fs, rest)
		cmd.EmergencyRequest(requireArg(fs, "emergency request <contact-id>"))
	case "approve":
		fs := flag.NewFlagSet("emergency approve", flag.ExitOnError)
		parse(fs, rest)
		cmd.EmergencyApprove(requireArg(fs, "emergency approve <request-id>"))
	case "deny":
		fs := flag.NewFlagSet("emergency deny", flag.ExitOnError)
		parse(fs, rest)
		cmd.EmergencyDeny(requireArg(fs, "emergency deny <request-id>"))
	case "access":
		fs := flag.NewFlagSet("emergency access", flag.ExitOnError)
		parse(fs, rest)
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: passlock emergency access <contact-id> <recovery-key>")
			os.Exit(1)
		}
		cmd.EmergencyAccess(fs.Arg(0), fs.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "Unknown emergency subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runKeyring(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passlock keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave()
	case "delete":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runDestroy(args []string) {
	fs := flag.NewFlagSet("destroy", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip confirmation")
	parse(fs, args)
	cmd.Destroy(*force)
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passlock completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("passlock - encrypted credential vault")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  passlock <command> [arguments]")
	fmt.Println()
	fmt.Println("Entries:")
	fmt.Println("  add             Add a new entry")
	fmt.Println("  get             Show one entry")
	fmt.Println("  list, ls        List entries (no password needed)")
	fmt.Println("  search          Find entries by query")
	fmt.Println("  edit            Edit an entry")
	fmt.Println("  fav             Mark or unmark an entry as favorite")
	fmt.Println("  rm              Move an entry to the trash")
	fmt.Println("  restore         Restore an entry from the trash")
	fmt.Println("  purge           Permanently delete an entry or empty the trash")
	fmt.Println("  categories      List, rename or delete categories")
	fmt.Println()
	fmt.Println("Security:")
	fmt.Println("  audit           Strength, reuse, expiry and breach checks")
	fmt.Println("  breach          Check one password against known breaches")
	fmt.Println("  verify          Verify the integrity of every stored entry")
	fmt.Println("  passwd          Change the master password")
	fmt.Println("  gen             Generate a random password")
	fmt.Println("  emergency       Trusted-contact emergency access")
	fmt.Println()
	fmt.Println("Sharing:")
	fmt.Println("  share           Seal one entry for a recipient")
	fmt.Println("  shares          List shares")
	fmt.Println("  redeem          Decrypt a received share")
	fmt.Println("  revoke          Revoke a share")
	fmt.Println()
	fmt.Println("Backup:")
	fmt.Println("  backup          Write an encrypted archive of the vault")
	fmt.Println("  restore-backup  Restore entries from an archive")
	fmt.Println("  export          Export entries as plaintext JSON")
	fmt.Println("  import          Import from csv, json or chrome exports")
	fmt.Println("  diff            Compare a backup archive with the live vault")
	fmt.Println()
	fmt.Println("Maintenance:")
	fmt.Println("  init            Create a new vault")
	fmt.Println("  status          Show vault status (no password needed)")
	fmt.Println("  compact         Reclaim unused disk space")
	fmt.Println("  keyring         Manage the master password in the OS keyring")
	fmt.Println("  destroy         Delete the vault permanently")
	fmt.Println("  completion      Generate shell completions")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PASSLOCK_DB        Vault database path (default ~/.passlock/vault.db)")
	fmt.Println("  PASSLOCK_PASSWORD  Master password, for scripting")
	fmt.Println("  PASSLOCK_AUTOLOCK  Idle auto-lock timeout (default 5m)")
	fmt.Println("  PASSLOCK_LOG       Log level (trace..error, default warn)")
}
