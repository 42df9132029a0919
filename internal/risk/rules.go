package risk

import (
	"github.com/dgerlanc/hookkit/internal/patterns"
)

// Regex fragments shared by the built-in rules. Every repetition is bounded
// by a character class that cannot cross a command separator, and RE2 runs
// in linear time, so adversarial input cannot cause backtracking blowups.
const (
	// one character of the current simple command
	seg = `[^;&|\n]`
	// one shell word that stays inside the current simple command
	word = `[^\s;&|]+`
	// end of a word
	end = `(?:\s|$|[;&|)])`

	rmRecursive = `(?:-[a-z]*r[a-z]*|--recursive)`
	rmPrefix    = `\brm\s+(?:-` + word + `\s+)*` + rmRecursive + `\s+(?:-` + word + `\s+)*(?:--\s+)?`
	// any other targets before the interesting one
	rmOthers = `(?:` + word + `\s+)*?`

	// force flags that count against a protected branch
	forceAny = `\s(?:--force(?:-with-lease(?:=\S*)?)?|-[a-z]*f[a-z]*)`
	// plain force flags; --force-with-lease alone is not flagged
	forcePlain = `\s(?:--force|-[a-z]*f[a-z]*)`
	// separator in front of a ref
	refDelim = `(?:\s|:|\+)(?:refs/heads/)?`

	// rest of the current simple command, up to and including its terminator
	rest = `(?:\s` + seg + `*)?(?:$|[;&|)\n])`

	rebaseControl = `\s--(?:abort|continue|skip|quit|edit-todo|show-current-patch)\b`
)

// gitGlobalFlags may appear between "git" and the subcommand.
var gitGlobalFlags = []string{"-C <arg>", "-c <arg>", "--git-dir <arg>", "--work-tree <arg>", "--no-pager"}

func git(subcommands ...string) string {
	return patterns.BuildSubcommandPattern("git", subcommands, gitGlobalFlags)
}

const backupSuggestion = "Create a backup branch first (for example git branch backup-before-rewrite) so the old history stays reachable."

// groupA are the domain-agnostic deny rules.
var groupA = []RuleSpec{
	{
		Name:        "rm-root-or-home",
		Pattern:     rmPrefix + rmOthers + `["']?(?:/\*?|~/?\*?|\$\{?home\}?/?\*?)["']?` + end,
		Category:    DestructiveFS,
		Severity:    Deny,
		Description: "recursive delete of the root or home directory",
	},
	{
		Name:        "rm-current-dir",
		Pattern:     rmPrefix + rmOthers + `["']?(?:\.{1,2}/?\*?|\*)["']?` + end,
		Category:    DestructiveFS,
		Severity:    Deny,
		Description: "recursive delete of the current directory",
	},
	{
		Name:        "fork-bomb",
		Pattern:     `:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
		Category:    ForkBomb,
		Severity:    Deny,
		Description: "shell fork bomb",
	},
	{
		Name:        "fork-bomb-named",
		Pattern:     `\b\w+\s*\(\s*\)\s*\{\s*\w+\s*\|\s*\w+\s*&\s*\}`,
		Category:    ForkBomb,
		Severity:    Deny,
		Description: "shell fork bomb",
	},
	{
		Name:        "filesystem-format",
		Pattern:     `\b(?:mkfs(?:\.[a-z0-9]+)?|mke2fs)\b`,
		Category:    DiskOverwrite,
		Severity:    Deny,
		Description: "filesystem format",
	},
	{
		Name:        "dd-to-device",
		Pattern:     `\bdd\b` + seg + `*\bof=["']?/dev/(?:sd|hd|vd|xvd|nvme|mmcblk|disk|rdisk|mapper/|md|dm-)`,
		Category:    DiskOverwrite,
		Severity:    Deny,
		Description: "dd write to a disk device",
	},
	{
		Name:        "redirect-to-device",
		Pattern:     `>\s*["']?/dev/(?:sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d|mmcblk\d|disk\d|rdisk\d)`,
		Category:    DiskOverwrite,
		Severity:    Deny,
		Description: "shell redirection to a disk device",
	},
	{
		Name: "chmod-777-root",
		Pattern: `\bchmod\s+(?:-` + word + `\s+)*(?:` + rmRecursive + `\s+(?:-` + word + `\s+)*0?777|0?777\s+(?:-` + word + `\s+)*` + rmRecursive + `)` +
			`\s+["']?/\*?["']?` + end,
		Category:    DestructiveFS,
		Severity:    Deny,
		Description: "recursive chmod 777 on the root directory",
	},
	{
		Name:        "pipe-to-shell",
		Pattern:     `\b(?:curl|wget)\b[^;&\n]*\|\s*(?:sudo\s+(?:-\S+\s+)*)?(?:env\s+)?(?:\S*/)?(?:ba|z|da|k|fi)?sh\b`,
		Category:    RemoteCodeExec,
		Severity:    Deny,
		Description: "remote content piped into a shell",
	},
	{
		Name:        "substitution-to-shell",
		Pattern:     `\b(?:(?:ba|z|da|k)?sh|source|eval)\s+(?:-\S+\s+)*(?:["']\s*)?(?:<\(|\$\()\s*(?:curl|wget)\b`,
		Category:    RemoteCodeExec,
		Severity:    Deny,
		Description: "remote content executed through a shell substitution",
	},
}

// groupB returns the git deny rules for the given protected branches.
func groupB(branches []string, mode BranchMatch) []RuleSpec {
	var rules []RuleSpec
	if len(branches) > 0 {
		branch := patterns.BuildNamedAlternation("branch", branches)
		delim, tail := refDelim, end
		if mode == BranchSubstring {
			branch = `(?P<branch>[^\s;&|]*` + patterns.BuildAlternation(branches) + `[^\s;&|]*)`
			delim, tail = `(?:\s|:|\+)`, ""
		}
		push := git("push")
		const desc = "force push to protected branch $branch"

		rules = append(rules,
			RuleSpec{
				Name:        "force-push-protected",
				Pattern:     push + seg + `*?` + forceAny + `(?:\s` + seg + `*?)?` + delim + branch + tail,
				Category:    GitForcePush,
				Severity:    Deny,
				Description: desc,
			},
			RuleSpec{
				Name:        "force-push-protected-trailing-flag",
				Pattern:     push + seg + `*?` + delim + branch + `(?:\s+` + seg + `*?)?` + forceAny + end,
				Category:    GitForcePush,
				Severity:    Deny,
				Description: desc,
			},
			RuleSpec{
				Name:        "force-push-protected-refspec",
				Pattern:     push + seg + `*?\s\+(?:\S*:)?(?:refs/heads/)?` + branch + tail,
				Category:    GitForcePush,
				Severity:    Deny,
				Description: desc,
			},
		)
	}

	rules = append(rules, RuleSpec{
		Name:        "rm-git-dir",
		Pattern:     rmPrefix + rmOthers + `["']?(?:[^\s;&|]*/)?\.git/?["']?` + end,
		Category:    GitDestructiveLocal,
		Severity:    Deny,
		Description: "recursive delete of the .git directory and all history",
	})
	return rules
}

// groupC are the git warn rules.
var groupC = []RuleSpec{
	{
		Name:        "force-push",
		Pattern:     git("push") + seg + `*?` + forcePlain + end,
		Category:    GitForcePush,
		Severity:    Warn,
		Description: "force push",
		Suggestion:  "Confirm the target branch is yours and prefer git push --force-with-lease, which refuses to overwrite commits you have not fetched.",
	},
	{
		Name:        "force-push-refspec",
		Pattern:     git("push") + seg + `*?\s\+[^\s;&|]`,
		Category:    GitForcePush,
		Severity:    Warn,
		Description: "force push via +refspec",
		Suggestion:  "Confirm the target branch is yours and prefer git push --force-with-lease, which refuses to overwrite commits you have not fetched.",
	},
	{
		Name:        "reset-hard",
		Pattern:     git("reset") + seg + `*?\s--hard` + end,
		Category:    GitDestructiveLocal,
		Severity:    Warn,
		Description: "hard reset discards uncommitted changes",
		Suggestion:  "Run git stash first to keep uncommitted work, or use git reset --soft to keep the changes staged.",
	},
	{
		Name:        "clean-force",
		Pattern:     git("clean") + seg + `*?\s(?:-[a-z]*f[a-z]*|--force)` + rest,
		Exclude:     `\s(?:-[a-z]*n[a-z]*|--dry-run)(?:\s|$|[;&|)])`,
		Category:    GitDestructiveLocal,
		Severity:    Warn,
		Description: "git clean deletes untracked files",
		Suggestion:  "Preview what would be removed with git clean -n (dry run) first.",
	},
	{
		Name: "branch-force-delete",
		Pattern: git("branch") + seg + `*?\s(?:(?-i:-[a-zA-Z]*D[a-zA-Z]*)|(?-i:-[a-z]*(?:df|fd)[a-z]*)|-d\s+-f|-f\s+-d|--delete\s+--force|--force\s+--delete)` +
			end,
		Category:    GitDestructiveLocal,
		Severity:    Warn,
		Description: "force branch delete can drop unmerged commits",
		Suggestion:  "Use git branch -d instead, which refuses to delete a branch that is not fully merged.",
	},
	{
		Name:        "interactive-rebase",
		Pattern:     git("rebase") + seg + `*?\s(?:-i|--interactive)` + rest,
		Exclude:     rebaseControl,
		Category:    GitHistoryRewrite,
		Severity:    Warn,
		Description: "interactive rebase rewrites history",
		Suggestion:  backupSuggestion,
	},
	{
		Name:        "rebase",
		Pattern:     git("rebase") + seg + `*`,
		Exclude:     rebaseControl,
		Category:    GitHistoryRewrite,
		Severity:    Warn,
		Description: "rebase rewrites history",
		Suggestion:  backupSuggestion,
	},
	{
		Name:        "commit-amend",
		Pattern:     git("commit") + seg + `*?\s--amend\b`,
		Category:    GitHistoryRewrite,
		Severity:    Warn,
		Description: "amend rewrites the last commit",
		Suggestion:  backupSuggestion,
	},
	{
		Name:        "checkout-discard",
		Pattern:     git("checkout") + seg + `*?\s["']?\./?["']?` + end,
		Category:    GitDestructiveLocal,
		Severity:    Warn,
		Description: "checkout of . discards all unstaged changes",
		Suggestion:  "Save the changes first with git stash push, then discard them.",
	},
	{
		Name:        "restore-discard",
		Pattern:     git("restore") + seg + `*?\s["']?\./?["']?` + rest,
		Exclude:     `\s(?:--staged|(?-i:-S))(?:\s|$)`,
		Category:    GitDestructiveLocal,
		Severity:    Warn,
		Description: "restore of . discards all unstaged changes",
		Suggestion:  "Save the changes first with git stash push, then discard them.",
	},
	{
		Name:        "filter-history",
		Pattern:     git("filter-branch", "filter-repo"),
		Category:    GitHistoryRewrite,
		Severity:    Warn,
		Description: "history filtering rewrites every commit",
		Suggestion:  "Work on a fresh mirror clone (git clone --mirror) so the original history can be recovered.",
	},
	{
		Name:        "stash-drop",
		Pattern:     git("stash") + `\s+(?:drop|clear)\b`,
		Category:    GitCaution,
		Severity:    Warn,
		Description: "dropping stash entries loses saved work",
		Suggestion:  "Check git stash list and git stash show -p first, or apply the entry before dropping it.",
	},
}
