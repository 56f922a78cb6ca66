package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordRule votes for a category with a set of lowercase phrases. Several
// rules may name the same category; their contributions add up.
type KeywordRule struct {
	Category string   `yaml:"category" json:"category"`
	Phrases  []string `yaml:"phrases" json:"phrases"`
}

// FilenameRule routes a document by literal fragments of its filename. Target
// is matched as a substring of the taxonomy keys. When Label is set the
// resolution reads "Filename suggests {Label}", otherwise "Filename match: {filename}".
type FilenameRule struct {
	Patterns []string `yaml:"patterns" json:"patterns"`
	Target   string   `yaml:"target" json:"target"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
}

// RuleSet is the on-disk form of a custom rule file
type RuleSet struct {
	Keywords []KeywordRule  `yaml:"keywords" json:"keywords"`
	Filename []FilenameRule `yaml:"filename_rules,omitempty" json:"filename_rules,omitempty"`
}

// DefaultRules returns the built-in keyword table in definition order
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		// Module 1 - Correspondence
		{Category: "1.0.1 Cover Letter", Phrases: []string{"cover letter", "application cover letter", "submission cover letter", "official cover letter", "regulatory cover letter", "letter of application"}},
		{Category: "1.0.2 General Note to Reviewer", Phrases: []string{"note to reviewer", "reviewer note", "general note", "explanatory note", "review note"}},
		{Category: "1.0.3 Life Cycle Management Tracking Table", Phrases: []string{"life cycle management", "lifecycle", "product lifecycle", "management tracking", "tracking table"}},
		{Category: "1.0.4 Correspondence Issued by Regulatory Authority", Phrases: []string{"regulatory authority correspondence", "authority correspondence", "regulatory letter received", "agency correspondence"}},
		{Category: "1.0.5 Response to Information Solicited by Regulatory Authority", Phrases: []string{"response to query", "query response", "information response", "response to regulatory", "questions and answers"}},
		{Category: "1.0.6 Meeting Information", Phrases: []string{"meeting minutes", "meeting notes", "meeting summary", "pre-meeting information", "post-meeting follow-up"}},
		{Category: "1.0.7 Request for Appeal Documentation", Phrases: []string{"appeal documentation", "request for appeal", "appeal letter", "regulatory appeal", "appeal request"}},

		// Module 1 - Administrative Information
		{Category: "1.2.1 Application Form", Phrases: []string{"application form", "submission application", "regulatory application", "marketing application", "application dossier"}},
		{Category: "1.2.2 Fee Forms", Phrases: []string{"fee form", "payment form", "fee payment", "administrative fee", "regulatory fee", "processing fee"}},
		{Category: "1.2.3 Certification and Attestation Forms", Phrases: []string{"certification form", "attestation form", "declaration form", "certificate", "attestation", "declaration"}},
		{Category: "1.2.4 Compliance and Site Information", Phrases: []string{"site information", "compliance information", "manufacturing site", "facility information"}},
		{Category: "1.2.5 Authorization for Sharing Information", Phrases: []string{"authorization form", "sharing authorization", "information sharing", "data sharing authorization"}},
		{Category: "1.2.6 Electronic Declaration", Phrases: []string{"electronic declaration", "e-declaration", "digital declaration"}},
		{Category: "1.2.7 Trademark & Intellectual Property Information", Phrases: []string{"trademark", "intellectual property", "ip", "brand name", "trade name", "proprietary name"}},
		{Category: "1.2.8 Screening Details", Phrases: []string{"screening", "pre-screening", "regulatory screening"}},

		// Module 1 - Product Information
		{Category: "1.3.1 Summary of Product Characteristics", Phrases: []string{"summary of product characteristics", "smc", "product characteristics", "prescribing information"}},
		{Category: "1.3.2 Patient Information Leaflet", Phrases: []string{"patient information leaflet", "pil", "patient leaflet", "patient information", "medication guide"}},
		{Category: "1.3.3 Container Labels", Phrases: []string{"container label", "primary label", "secondary label", "package label", "outer label", "inner label"}},
		{Category: "1.3.4 Foreign Labelling", Phrases: []string{"foreign labelling", "foreign labeling", "export labelling", "international labelling", "multicountry labelling"}},
		{Category: "1.3.5 Reference Product Labelling", Phrases: []string{"reference product", "comparator labelling", "reference labelling", "originator labelling"}},
		{Category: "1.3.6 Artwork and Samples", Phrases: []string{"artwork", "sample artwork", "label artwork", "mock-up", "sample", "prototype"}},

		// Module 1 - GMP
		{Category: "1.7.1 Date of Inspection of Each Site", Phrases: []string{"inspection date", "site inspection date", "gmp inspection date"}},
		{Category: "1.7.2 Inspection Reports or Equivalent Documents", Phrases: []string{"inspection report", "gmp inspection", "regulatory inspection", "site inspection", "facility inspection"}},
		{Category: "1.7.3 GMP Certificates or Manufacturing Licences", Phrases: []string{"gmp certificate", "manufacturing license", "manufacturing authorization", "gmp compliance certificate", "site license"}},
		{Category: "1.7.4 Other GMP Documents", Phrases: []string{"gmp documentation", "gmp compliance", "gmp related"}},

		// Module 2 - Summaries
		{Category: "2.3 Quality Overall Summary", Phrases: []string{"quality overall summary", "qos", "module 2.3", "drug substance summary", "drug product summary"}},
		{Category: "2.4 Nonclinical Overview", Phrases: []string{"nonclinical overview", "preclinical overview", "module 2.4"}},
		{Category: "2.5 Clinical Overview", Phrases: []string{"clinical overview", "module 2.5", "medical overview"}},

		// Module 3 - Quality
		{Category: "3.2.S Drug Substance", Phrases: []string{"drug substance", "active substance", "api", "active pharmaceutical ingredient"}},
		{Category: "3.2.P Drug Product", Phrases: []string{"drug product", "finished product", "formulation", "composition"}},
		{Category: "3.2.P.8 Stability", Phrases: []string{"stability", "stability study", "shelf life", "storage condition"}},

		// Module 4 - Nonclinical
		{Category: "4.2.1 Pharmacology", Phrases: []string{"pharmacology", "pharmacodynamic", "primary pharmacodynamics", "secondary pharmacodynamics", "safety pharmacology"}},
		{Category: "4.2.2 Pharmacokinetics", Phrases: []string{"pharmacokinetics", "pk", "adme", "absorption", "distribution", "metabolism", "excretion"}},
		{Category: "4.2.3 Toxicology", Phrases: []string{"toxicology", "toxicity study", "single dose toxicity", "repeat dose toxicity", "genotoxicity", "carcinogenicity", "reproductive toxicity", "developmental toxicity"}},

		// Module 5 - Clinical
		{Category: "5.3 Clinical Study Reports", Phrases: []string{"clinical study", "clinical trial", "study report", "clinical report", "study protocol"}},
		{Category: "5.3.1 Reports of Biopharmaceutic Studies", Phrases: []string{"biopharmaceutics", "bioavailability", "bioequivalence", "ba", "be"}},
		{Category: "5.3.5 Reports of Efficacy and Safety Studies", Phrases: []string{"efficacy", "effectiveness", "clinical efficacy", "safety"}},
	}
}

// DefaultFilenameRules returns the filename table. Exact fragments come
// first; the broad single-word rules only apply when none of them matched.
func DefaultFilenameRules() []FilenameRule {
	return []FilenameRule{
		{Patterns: []string{"cover letter", "cover-letter", "cover_letter", "emea-cover", "ema-cover"}, Target: "1.0.1 Cover Letter"},
		{Patterns: []string{"application form", "application-form", "appform", "emea-form", "ema-form"}, Target: "1.2.1 Application Form"},
		{Patterns: []string{"gmp certificate", "gmp-cert"}, Target: "1.7.3 GMP Certificates or Manufacturing Licences"},
		{Patterns: []string{"smc", "summary of product"}, Target: "1.3.1 Summary of Product Characteristics (SmPC)"},
		{Patterns: []string{"pil", "patient leaflet"}, Target: "1.3.2 Patient Information Leaflet (PIL)"},
		{Patterns: []string{"clinical study", "study-report", "clinical-trial"}, Target: "5.3 Clinical Study Reports and Related Information"},
		{Patterns: []string{"protocol", "study-protocol"}, Target: "5.3 Clinical Study Reports and Related Information"},
		{Patterns: []string{"quality summary", "qos"}, Target: "2.3 Quality Overall Summary (QOS)"},
		{Patterns: []string{"stability", "stability-study"}, Target: "3.2.P.8 Stability"},
		{Patterns: []string{"specification", "spec"}, Target: "3.2.P.5 Control of Drug Product"},

		{Patterns: []string{"cover"}, Target: "1.0.1 Cover Letter", Label: "Cover Letter"},
		{Patterns: []string{"application", "form"}, Target: "1.2.1 Application Form", Label: "Application Form"},
		{Patterns: []string{"clinical", "study"}, Target: "5.3 Clinical Study Reports", Label: "Clinical Study"},
		{Patterns: []string{"toxicology", "tox"}, Target: "4.2.3 Toxicology", Label: "Toxicology"},
		{Patterns: []string{"gmp"}, Target: "1.7 Good Manufacturing Practice (GMP)", Label: "GMP"},
	}
}

// LoadRules reads a YAML or JSON rule file. Phrases and patterns are
// lowercased; a file without filename rules keeps the built-in table.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rules file %s: %w", path, err)
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(set.Keywords) == 0 {
		return nil, fmt.Errorf("rules file %s defines no keyword rules", path)
	}

	for i := range set.Keywords {
		rule := &set.Keywords[i]
		if strings.TrimSpace(rule.Category) == "" {
			return nil, fmt.Errorf("keyword rule %d has no category", i+1)
		}
		rule.Phrases = normalizePhrases(rule.Phrases)
		if len(rule.Phrases) == 0 {
			return nil, fmt.Errorf("keyword rule %q has no phrases", rule.Category)
		}
	}
	for i := range set.Filename {
		rule := &set.Filename[i]
		if rule.Target == "" {
			return nil, fmt.Errorf("filename rule %d has no target", i+1)
		}
		rule.Patterns = normalizePhrases(rule.Patterns)
	}
	if len(set.Filename) == 0 {
		set.Filename = DefaultFilenameRules()
	}

	return &set, nil
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
