// internal/assistant/entity-extraction/dictionaries.go
package entityextraction

import "community-assistant/internal/models"

// Vocabulary for the dictionary resolvers. Order matters only for ties between
// equally long variants.

var ethnicGroups = []termGroup{
	{"Meranaw", []string{"meranaw", "maranao", "marano", "meranaos", "maranaos"}},
	{"Maguindanaon", []string{"maguindanaon", "maguindanao", "magindanao", "maguindanons"}},
	{"Tausug", []string{"tausug", "tausog", "tausugs", "tau sug"}},
	{"Sama", []string{"sama", "sama-bajau", "sama bajau", "bajau"}},
	{"Badjao", []string{"badjao", "badjaos", "bajo", "sama badjao"}},
	{"Yakan", []string{"yakan", "yakans", "yaken"}},
	{"Iranun", []string{"iranun", "iranon", "ilanun", "iranuns"}},
	{"Kagan Kalagan", []string{"kagan kalagan", "kalagan", "kagan", "kaagan"}},
	{"Kolibugan", []string{"kolibugan", "kalibugan", "kolibogan"}},
	{"Sangil", []string{"sangil", "sangir", "sangils"}},
	{"Molbog", []string{"molbog", "mulbug", "molbogs"}},
	{"Jama Mapun", []string{"jama mapun", "mapun"}},
	{"Palawani", []string{"palawani", "palawanos"}},
}

var livelihoods = []termGroup{
	{"farming", []string{"farming", "farmer", "farmers", "agricultural", "crops", "rice", "corn", "vegetables"}},
	{"fishing", []string{"fishing", "fisher", "fisherman", "fishermen", "fisherfolk", "fish", "aquaculture"}},
	{"trading", []string{"trading", "trader", "traders", "merchant", "merchants", "sari-sari"}},
	{"weaving", []string{"weaving", "weaver", "weavers", "textile", "textiles", "handloom"}},
	{"livestock", []string{"livestock", "cattle", "poultry", "chicken", "goat", "carabao", "animal husbandry"}},
	{"carpentry", []string{"carpentry", "carpenter", "carpenters", "woodwork", "woodworking"}},
	{"masonry", []string{"masonry", "mason", "masons", "construction", "builder"}},
	{"driving", []string{"driving", "driver", "drivers", "tricycle", "jeepney"}},
	{"vending", []string{"vending", "vendor", "vendors", "street vendor", "market vendor"}},
	{"handicrafts", []string{"handicrafts", "handicraft", "artisan", "artisans", "crafts"}},
}

var statuses = []termGroup{
	{"ongoing", []string{"ongoing", "in progress", "active", "in-progress", "running"}},
	{"completed", []string{"completed", "done", "finished", "complete", "closed"}},
	{"draft", []string{"draft", "drafts", "drafted"}},
	{"pending", []string{"pending", "waiting", "awaiting"}},
	{"approved", []string{"approved", "accepted", "confirmed"}},
	{"rejected", []string{"rejected", "declined", "denied"}},
	{"cancelled", []string{"cancelled", "canceled"}},
	{"suspended", []string{"suspended", "paused", "on hold"}},
	{"planned", []string{"planned", "scheduled", "upcoming"}},
}

var sectors = []termGroup{
	{"education", []string{"education", "educational", "school", "schools", "learning", "training"}},
	{"economic_development", []string{"economic", "economy", "livelihood", "enterprise"}},
	{"social_development", []string{"social", "community development", "social welfare"}},
	{"cultural_development", []string{"cultural", "culture", "heritage", "tradition"}},
	{"infrastructure", []string{"infrastructure", "roads", "bridges", "facilities", "buildings"}},
	{"health", []string{"health", "medical", "healthcare", "clinic", "hospital", "wellness"}},
	{"governance", []string{"governance", "government", "administration", "leadership"}},
	{"environment", []string{"environment", "environmental", "ecology", "nature", "conservation"}},
	{"security", []string{"security", "peace", "safety", "protection", "conflict"}},
}

var priorityLevels = []termGroup{
	{"immediate", []string{"critical", "immediate", "urgent", "emergency", "asap"}},
	{"short_term", []string{"high priority", "high", "important", "pressing"}},
	{"medium_term", []string{"medium", "moderate", "normal"}},
	{"long_term", []string{"low priority", "low", "long-term"}},
}

var urgencyLevels = []termGroup{
	{"immediate", []string{"immediate", "within 1 month", "within a month", "asap", "right now"}},
	{"short_term", []string{"short term", "short-term", "1-6 months", "few months"}},
	{"medium_term", []string{"medium term", "medium-term", "6-12 months"}},
	{"long_term", []string{"long term", "long-term", "over a year", "future"}},
}

var needStatuses = []termGroup{
	{"identified", []string{"identified", "unmet", "unfulfilled", "unaddressed"}},
	{"validated", []string{"validated", "verified"}},
	{"prioritized", []string{"prioritized", "ranked"}},
	{"in_progress", []string{"partially met", "implementing"}},
	{"completed", []string{"fulfilled", "addressed", "met"}},
	{"deferred", []string{"deferred", "postponed", "delayed"}},
}

var ministries = []termGroup{
	{"MILG", []string{"milg", "local government", "ministry of local government"}},
	{"MSSD", []string{"mssd", "social services", "ministry of social services"}},
	{"MOH", []string{"moh", "ministry of health", "public health"}},
	{"MPW", []string{"mpw", "public works", "ministry of public works"}},
	{"MBHTE", []string{"mbhte", "basic education", "higher education", "ministry of basic higher and technical education"}},
	{"MOJ", []string{"moj", "ministry of justice"}},
	{"MTIT", []string{"mtit", "trade and industry", "ministry of trade"}},
	{"MENRE", []string{"menre", "natural resources", "ministry of environment"}},
	{"MAFAR", []string{"mafar", "fisheries", "ministry of agriculture"}},
	{"MOLE", []string{"mole", "labor", "employment", "ministry of labor"}},
	{"MOTC", []string{"motc", "transportation", "ministry of transportation"}},
}

var assessmentTypes = []termGroup{
	{"rapid", []string{"rapid", "quick"}},
	{"comprehensive", []string{"comprehensive", "detailed", "thorough"}},
	{"baseline", []string{"baseline", "initial", "benchmark"}},
	{"thematic", []string{"thematic", "sectoral", "sector-specific"}},
	{"needs_assessment", []string{"needs assessment", "needs assessments", "mana"}},
	{"impact", []string{"impact", "outcome"}},
	{"monitoring", []string{"monitoring", "tracking"}},
}

var partnershipTypes = []termGroup{
	{"MOA", []string{"moa", "memorandum of agreement", "agreement"}},
	{"MOU", []string{"mou", "memorandum of understanding"}},
	{"collaboration", []string{"collaboration", "collaborative", "partnership"}},
	{"joint_program", []string{"joint program", "joint project", "joint initiative"}},
	{"technical_assistance", []string{"technical assistance", "technical support"}},
	{"capacity_building", []string{"capacity building", "capability development"}},
	{"coordination", []string{"coordination", "multi-stakeholder"}},
}

// dictionarySpec wires one vocabulary to the entity kind it produces.
type dictionarySpec struct {
	kind   models.EntityKind
	groups []termGroup
}

var dictionaryResolvers = []dictionarySpec{
	{models.KindEthnicGroup, ethnicGroups},
	{models.KindLivelihood, livelihoods},
	{models.KindStatus, statuses},
	{models.KindSector, sectors},
	{models.KindPriorityLevel, priorityLevels},
	{models.KindUrgencyLevel, urgencyLevels},
	{models.KindNeedStatus, needStatuses},
	{models.KindMinistry, ministries},
	{models.KindAssessmentType, assessmentTypes},
	{models.KindPartnershipType, partnershipTypes},
}
