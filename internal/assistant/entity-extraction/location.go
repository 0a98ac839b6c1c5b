// internal/assistant/entity-extraction/location.go
package entityextraction

import (
	"context"
	"strings"
	"unicode/utf8"

	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// LocationDirectory is the optional read-only lookup behind location
// resolution. Implementations live in recordstore.
type LocationDirectory interface {
	FindProvince(ctx context.Context, name string) (string, bool, error)
	FindMunicipality(ctx context.Context, phrase string) (models.Municipality, bool, error)
}

type regionSpec struct {
	Code     string
	Official string
	Label    string
	Variants []string
}

// Regions served by the assistant, in code order.
var Regions = []regionSpec{
	{"IX", "Region IX", "Zamboanga Peninsula", []string{"region ix", "region 9", "zamboanga", "zamboanga peninsula", "r9", "rix"}},
	{"X", "Region X", "Northern Mindanao", []string{"region x", "region 10", "northern mindanao", "r10", "rx"}},
	{"XI", "Region XI", "Davao Region", []string{"region xi", "region 11", "davao", "davao region", "r11", "rxi"}},
	{"XII", "Region XII", "SOCCSKSARGEN", []string{"region xii", "region 12", "soccsksargen", "socsksargen", "r12", "rxii"}},
}

var provinces = []termGroup{
	{"sultan kudarat", []string{"sultan kudarat", "skudarat"}},
	{"maguindanao", []string{"maguindanao del norte", "maguindanao del sur"}},
	{"south cotabato", []string{"south cotabato", "s cotabato", "socot"}},
	{"sarangani", []string{"sarangani", "saranggani"}},
	{"cotabato", []string{"cotabato", "north cotabato", "n cotabato"}},
	{"zamboanga del norte", []string{"zamboanga del norte", "zdn", "z del norte"}},
	{"zamboanga del sur", []string{"zamboanga del sur", "zds", "z del sur"}},
	{"zamboanga sibugay", []string{"zamboanga sibugay", "sibugay"}},
	{"bukidnon", []string{"bukidnon", "bukidnon province"}},
	{"misamis oriental", []string{"misamis oriental", "mis or", "misor"}},
	{"misamis occidental", []string{"misamis occidental", "mis occ", "misocc"}},
	{"lanao del norte", []string{"lanao del norte", "ldn", "l del norte"}},
	{"davao del norte", []string{"davao del norte", "ddn", "d del norte"}},
	{"davao del sur", []string{"davao del sur", "dds", "d del sur"}},
	{"davao oriental", []string{"davao oriental", "d oriental"}},
	{"davao de oro", []string{"davao de oro", "compostela valley", "comval"}},
	{"davao occidental", []string{"davao occidental", "docc", "d occidental"}},
}

// Words that never start or end a municipality phrase.
var locationStopwords = map[string]bool{
	"a": true, "about": true, "all": true, "and": true, "are": true, "communities": true,
	"community": true, "count": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "list": true, "many": true, "me": true, "of": true, "on": true, "show": true,
	"the": true, "there": true, "to": true, "total": true, "what": true, "which": true,
	"with": true, "workshops": true, "projects": true, "policies": true, "region": true,
}

// LocationResolver resolves regions, provinces and, through the directory,
// municipalities. The longest literal across regions and provinces wins.
type LocationResolver struct {
	regions   *phraseMatcher
	provinces *phraseMatcher
	directory LocationDirectory
}

func NewLocationResolver(directory LocationDirectory) *LocationResolver {
	groups := make([]termGroup, len(Regions))
	for i, r := range Regions {
		groups[i] = termGroup{Canonical: r.Official, Variants: r.Variants}
	}
	return &LocationResolver{
		regions:   newPhraseMatcher(groups),
		provinces: newPhraseMatcher(provinces),
		directory: directory,
	}
}

func (r *LocationResolver) Kind() models.EntityKind { return models.KindLocation }

func (r *LocationResolver) Resolve(ctx context.Context, q models.NormalizedQuery) (models.Entity, bool, error) {
	text := string(q)
	regionHit, hasRegion := r.regions.best(text)
	provinceHit, hasProvince := r.provinces.best(text)

	if hasProvince && (!hasRegion || utf8.RuneCountInString(provinceHit.Variant) > utf8.RuneCountInString(regionHit.Variant)) {
		return r.province(ctx, provinceHit), true, nil
	}
	if hasRegion {
		spec := Regions[regionHit.Group]
		confidence := 0.85
		if strings.HasPrefix(regionHit.Variant, "region") {
			confidence = ConfidenceCanonical
		}
		return models.LocationEntity{
			Value:        spec.Official,
			LocationType: models.LocationRegion,
			Code:         spec.Code,
			Confidence:   confidence,
			Validated:    true,
		}, true, nil
	}
	return r.municipality(ctx, text)
}

func (r *LocationResolver) province(ctx context.Context, hit phraseHit) models.LocationEntity {
	name := r.provinces.groups[hit.Group].Canonical
	confidence := 0.7 + float64(utf8.RuneCountInString(hit.Variant))/20
	if confidence > 0.92 {
		confidence = 0.92
	}

	entity := models.LocationEntity{
		Value:        textutil.Title(name),
		LocationType: models.LocationProvince,
		Confidence:   confidence,
	}
	if r.directory != nil {
		if official, ok, err := r.directory.FindProvince(ctx, name); err == nil && ok {
			entity.Value = official
			entity.Validated = true
			return entity
		}
	}
	entity.Confidence = confidence * 0.9
	return entity
}

// municipality tries 3-, 2- then 1-word phrases against the directory.
// Directory errors are returned so the extractor can log them; the query
// still resolves other entities.
func (r *LocationResolver) municipality(ctx context.Context, text string) (models.Entity, bool, error) {
	if r.directory == nil {
		return nil, false, nil
	}
	words := strings.Fields(text)
	for i := range words {
		for size := 3; size >= 1; size-- {
			if i+size > len(words) {
				continue
			}
			phrase := words[i : i+size]
			if locationStopwords[phrase[0]] || locationStopwords[phrase[len(phrase)-1]] {
				continue
			}
			joined := strings.Join(phrase, " ")
			if utf8.RuneCountInString(joined) < 4 {
				continue
			}
			m, ok, err := r.directory.FindMunicipality(ctx, joined)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			confidence := 0.75
			if strings.EqualFold(m.Name, joined) {
				confidence = ConfidenceVariant
			}
			return models.LocationEntity{
				Value:        m.Name,
				LocationType: models.LocationMunicipality,
				Confidence:   confidence,
				Validated:    true,
			}, true, nil
		}
	}
	return nil, false, nil
}
