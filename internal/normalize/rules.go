package normalize

import "github.com/infblueocean/sitrep/internal/model"

// Rule maps a keyword list to a category label. Rules are evaluated in
// order and the first rule with any keyword present wins.
type Rule struct {
	Label    model.Category
	Keywords []string
}

// DefaultRules is the ordered classification rule set. Order matters:
// the more specific incident types sit above the broad ones, and an
// unmatched report falls through to "other".
var DefaultRules = []Rule{
	{model.CategoryAirstrike, []string{
		"airstrike", "air strike", "air raid", "drone strike", "missile strike",
		"bombing raid", "warplane",
	}},
	{model.CategoryArtillery, []string{
		"shelling", "artillery", "mortar", "rocket fire", "rocket attack",
		"barrage",
	}},
	{model.CategoryExplosion, []string{
		"explosion", "blast", "car bomb", "suicide bomb", "ied", "detonated",
	}},
	{model.CategoryClash, []string{
		"clash", "clashes", "firefight", "gun battle", "gunmen", "ambush",
		"offensive", "fighting",
	}},
	{model.CategoryCeasefire, []string{
		"ceasefire", "cease-fire", "truce", "armistice", "de-escalation",
	}},
	{model.CategoryDiplomacy, []string{
		"talks", "summit", "negotiation", "negotiations", "sanctions",
		"peace deal", "agreement", "envoy",
	}},
	{model.CategoryProtest, []string{
		"protest", "protests", "demonstration", "riot", "unrest", "crackdown",
	}},
	{model.CategoryHumanitarian, []string{
		"refugees", "displaced", "humanitarian", "aid convoy", "famine",
		"evacuation", "evacuated",
	}},
}

// actorDictionary lists the named forces and organizations the
// normalizer recognizes, keyed by match text (lowercase) with the
// canonical actor name as value.
var actorDictionary = map[string]string{
	"russian forces":   "Russian forces",
	"russian army":     "Russian forces",
	"ukrainian forces": "Ukrainian forces",
	"ukrainian army":   "Ukrainian forces",
	"idf":              "IDF",
	"israeli military": "IDF",
	"israeli forces":   "IDF",
	"hamas":            "Hamas",
	"hezbollah":        "Hezbollah",
	"houthi":           "Houthis",
	"houthis":          "Houthis",
	"taliban":          "Taliban",
	"isis":             "ISIS",
	"islamic state":    "ISIS",
	"al-shabaab":       "Al-Shabaab",
	"boko haram":       "Boko Haram",
	"wagner":           "Wagner Group",
	"rsf":              "RSF",
	"sudanese army":    "Sudanese army",
	"un":               "UN",
	"united nations":   "UN",
	"nato":             "NATO",
	"red cross":        "Red Cross",
	"syrian army":      "Syrian army",
	"kurdish forces":   "Kurdish forces",
	"sdf":              "SDF",
	"m23":              "M23",
}

// stopwords are excluded from keyword extraction. Short function words
// plus the wire-service boilerplate that dominates headline text.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "of": true, "for": true,
	"by": true, "with": true, "from": true, "as": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"has": true, "have": true, "had": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "his": true,
	"her": true, "their": true, "after": true, "before": true, "over": true,
	"under": true, "into": true, "amid": true, "during": true, "says": true,
	"said": true, "say": true, "will": true, "would": true, "could": true,
	"more": true, "than": true, "no": true, "not": true, "new": true,
	"news": true, "report": true, "reports": true, "reported": true,
	"breaking": true, "live": true, "update": true, "updates": true,
	"latest": true, "least": true, "near": true, "up": true, "out": true,
	"about": true, "against": true,
}
