package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	ClassifyDocumentDescription = `Decide which CTD folder a PDF belongs in without copying it.

**When to use:** Need to know where a regulatory document would be filed, or why the organizer placed it where it did.

**Why it's useful:** Shows the full decision: section numbers found in the text, the top keyword scores and the strategy that picked the destination.

**Examples:**
• Check a single file: "Where would documents_to_organize/m3/stability_report.pdf go?"
• Explain a placement: "Why did cover.pdf end up in 1.0.1 Cover Letter?"
• Debug a rule table: "Classify qos.pdf and show the keyword scores"

**Common workflows:**
1. Preview: ctd_classify_document → review reason → ctd_organize_folder with dry_run
2. Rule tuning: classify → adjust rules file → classify again

**Best practices:** Only paths inside the configured source folder are accepted. Scanned PDFs without a text layer are classified by filename only; the response says so.`

	LookupSectionDescription = `Find CTD taxonomy sections by identifier or name.

**When to use:** Need the folder for a CTD section, or want to browse which sections match a term.

**Why it's useful:** Resolves identifiers such as "3.2.P.8" and display names such as "Stability" to their folder paths in the organized tree.

**Examples:**
• Exact identifier: "Which folder is section 2.3?"
• Partial search: "List every section mentioning Nonclinical"
• Module listing: "Show the sections under 3.2.S"

**Common workflows:**
1. Manual filing: ctd_lookup_section → copy a document into the returned folder
2. Verification: ctd_organize_folder → ctd_lookup_section to inspect a destination

**Best practices:** An exact identifier returns a single section; any other query returns up to the requested number of matches in taxonomy order.`

	OrganizeFolderDescription = `Classify every PDF in the source folder and copy it into the CTD tree.

**When to use:** A batch of submission documents is ready to be filed into the CTD structure.

**Why it's useful:** Runs the complete pipeline on all PDFs, never overwrites existing files (name_1.pdf, name_2.pdf...) and writes an audit log of every decision.

**Examples:**
• Plan a run: "Organize the source folder as a dry run and show where files would go"
• File documents: "Organize documents_to_organize into organized_ctd"

**Common workflows:**
1. Safe batch: dry_run=true → review summary → dry_run=false
2. Audit: organize → ctd_run_history to review earlier runs

**Best practices:** Always start with a dry run. The CTD tree must exist; run "ctd-organizer init" first.`

	RunHistoryDescription = `List previous organizer runs recorded in the audit ledger.

**When to use:** Need to know when documents were organized, or where a particular source file went in earlier runs.

**Why it's useful:** The ledger keeps every run, including dry runs, so placements can be traced after the fact.

**Examples:**
• Recent runs: "Show the last 5 organizer runs"
• Trace a file: "Where did documents_to_organize/m1/cover.pdf go?"

**Common workflows:**
1. Audit: ctd_run_history → inspect run → ctd_classify_document to re-check a decision

**Best practices:** Requires the server to be started with --audit-db.`

	ServerInfoDescription = `Get organizer configuration and taxonomy statistics.

**When to use:** Starting a session, checking which folders the server works on, or confirming the taxonomy loaded correctly.

**Why it's useful:** Reports source and output folders, taxonomy size, CTD modules and extraction limits.

**Examples:**
• Session start: "What folders is the CTD organizer using?"
• Troubleshooting: "Was the custom taxonomy loaded?"

**Best practices:** Call first to learn the configured folders before using other tools.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"ctd_classify_document": ClassifyDocumentDescription,
	"ctd_lookup_section":    LookupSectionDescription,
	"ctd_organize_folder":   OrganizeFolderDescription,
	"ctd_run_history":       RunHistoryDescription,
	"ctd_server_info":       ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the available tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
