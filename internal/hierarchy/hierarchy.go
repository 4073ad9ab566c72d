// Package hierarchy stitches account > campaign > ad set > ad > creative chains
// onto report items so views can group and filter by parent without walking a tree.
package hierarchy

import (
	"sort"
	"strings"
)

type Level string

const (
	LevelCampaign Level = "campaign"
	LevelAdSet    Level = "adset"
	LevelAd       Level = "ad"
	LevelCreative Level = "creative"
)

type Account struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Object is one campaign, ad set, ad or creative as returned by the data source.
type Object struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	AdSetID    string `json:"adset_id,omitempty"`
	CreativeID string `json:"creative_id,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

type Entry struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AdSetID      string `json:"adset_id,omitempty"`
	AdSetName    string `json:"adset_name,omitempty"`
	AdID         string `json:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty"`
}

// Path is the lower-cased parent chain used by parent filters.
func (e Entry) Path() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{e.AccountName, e.CampaignName, e.AdSetName, e.AdName} {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, strings.ToLower(trimmed))
	}
	return strings.Join(parts, " > ")
}

type ItemMeta struct {
	Name      string `json:"name"`
	Subtitle  string `json:"subtitle,omitempty"`
	Status    string `json:"status,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type Builder struct {
	account   Account
	campaigns map[string]Object
	adSets    map[string]Object
	ads       map[string]Object
	creatives map[string]Object
}

func NewBuilder(account Account) *Builder {
	return &Builder{
		account:   account,
		campaigns: map[string]Object{},
		adSets:    map[string]Object{},
		ads:       map[string]Object{},
		creatives: map[string]Object{},
	}
}

func (b *Builder) AddCampaigns(objects []Object) *Builder {
	addObjects(b.campaigns, objects)
	return b
}

func (b *Builder) AddAdSets(objects []Object) *Builder {
	addObjects(b.adSets, objects)
	return b
}

func (b *Builder) AddAds(objects []Object) *Builder {
	addObjects(b.ads, objects)
	return b
}

func (b *Builder) AddCreatives(objects []Object) *Builder {
	addObjects(b.creatives, objects)
	return b
}

func addObjects(target map[string]Object, objects []Object) {
	for _, object := range objects {
		id := strings.TrimSpace(object.ID)
		if id == "" {
			continue
		}
		object.ID = id
		target[id] = object
	}
}

func (b *Builder) Build() *Lookup {
	creativeAds := map[string][]string{}
	adCreative := map[string]string{}
	for id, ad := range b.ads {
		creativeID := strings.TrimSpace(ad.CreativeID)
		if creativeID == "" {
			continue
		}
		adCreative[id] = creativeID
		creativeAds[creativeID] = append(creativeAds[creativeID], id)
	}
	for creativeID := range creativeAds {
		sort.Strings(creativeAds[creativeID])
	}
	return &Lookup{
		account:     b.account,
		campaigns:   b.campaigns,
		adSets:      b.adSets,
		ads:         b.ads,
		creatives:   b.creatives,
		adCreative:  adCreative,
		creativeAds: creativeAds,
	}
}

// Lookup is an immutable per-account resolver.
type Lookup struct {
	account     Account
	campaigns   map[string]Object
	adSets      map[string]Object
	ads         map[string]Object
	creatives   map[string]Object
	adCreative  map[string]string
	creativeAds map[string][]string
}

func (l *Lookup) Account() Account {
	return l.account
}

func (l *Lookup) CreativeForAd(adID string) (string, bool) {
	creativeID, ok := l.adCreative[adID]
	return creativeID, ok
}

func (l *Lookup) AdsForCreative(creativeID string) []string {
	return append([]string(nil), l.creativeAds[creativeID]...)
}

// Resolve returns the ancestor chain for id at level. ok is false when the
// object is unknown to this account.
func (l *Lookup) Resolve(level Level, id string) (Entry, bool) {
	entry := Entry{AccountID: l.account.ID, AccountName: l.account.Name}
	switch level {
	case LevelCampaign:
		campaign, ok := l.campaigns[id]
		if !ok {
			return entry, false
		}
		entry.CampaignID = campaign.ID
		entry.CampaignName = campaign.Name
		return entry, true
	case LevelAdSet:
		adSet, ok := l.adSets[id]
		if !ok {
			return entry, false
		}
		l.fillAdSet(&entry, adSet)
		return entry, true
	case LevelAd:
		ad, ok := l.ads[id]
		if !ok {
			return entry, false
		}
		l.fillAd(&entry, ad)
		return entry, true
	case LevelCreative:
		adIDs := l.creativeAds[id]
		if len(adIDs) == 0 {
			if _, ok := l.creatives[id]; !ok {
				return entry, false
			}
			return entry, true
		}
		l.fillAd(&entry, l.ads[adIDs[0]])
		return entry, true
	default:
		return entry, false
	}
}

func (l *Lookup) fillAd(entry *Entry, ad Object) {
	entry.AdID = ad.ID
	entry.AdName = ad.Name
	adSet, ok := l.adSets[ad.AdSetID]
	if !ok {
		adSet = Object{ID: ad.AdSetID, CampaignID: ad.CampaignID}
	}
	if adSet.CampaignID == "" {
		adSet.CampaignID = ad.CampaignID
	}
	l.fillAdSet(entry, adSet)
}

func (l *Lookup) fillAdSet(entry *Entry, adSet Object) {
	entry.AdSetID = adSet.ID
	entry.AdSetName = adSet.Name
	entry.CampaignID = adSet.CampaignID
	if campaign, ok := l.campaigns[adSet.CampaignID]; ok {
		entry.CampaignName = campaign.Name
	}
}

// Meta returns display metadata. The subtitle names the direct parent.
func (l *Lookup) Meta(level Level, id string) (ItemMeta, bool) {
	var (
		object Object
		ok     bool
	)
	switch level {
	case LevelCampaign:
		object, ok = l.campaigns[id]
	case LevelAdSet:
		object, ok = l.adSets[id]
	case LevelAd:
		object, ok = l.ads[id]
	case LevelCreative:
		object, ok = l.creatives[id]
	}
	if !ok {
		return ItemMeta{}, false
	}
	meta := ItemMeta{
		Name:      object.Name,
		Status:    strings.ToUpper(strings.TrimSpace(object.Status)),
		Thumbnail: object.Thumbnail,
	}
	if entry, resolved := l.Resolve(level, id); resolved {
		switch level {
		case LevelCampaign:
			meta.Subtitle = entry.AccountName
		case LevelAdSet:
			meta.Subtitle = entry.CampaignName
		case LevelAd:
			meta.Subtitle = entry.AdSetName
		case LevelCreative:
			meta.Subtitle = entry.AdName
		}
	}
	return meta, true
}
