// Package snapshot projects a run result into the published snapshot
// payload and reads and writes it on disk.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
)

// CurrentVersion is the payload version written when none is configured.
const CurrentVersion = 1

// Snapshot is the published artifact for one area.
type Snapshot struct {
	Version     int             `json:"version"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Borough     string          `json:"borough"`
	AreaCode    string          `json:"areaCode"`
	AreaName    string          `json:"areaName"`
	Leads       []Lead          `json:"leads"`
	Stats       model.Stats     `json:"stats"`
	Progress    *model.Progress `json:"progress"`
}

// Lead is the published projection of a scored parcel. Linked records
// are reduced to counts, except the registration.
type Lead struct {
	BBL          string `json:"bbl"`
	Borough      string `json:"borough"`
	Block        string `json:"block"`
	Lot          string `json:"lot"`
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood,omitempty"`
	ZipCode      string `json:"zipcode,omitempty"`

	OwnerName      string   `json:"ownerName,omitempty"`
	PortfolioSize  int      `json:"portfolioSize"`
	OwnerPortfolio []string `json:"ownerPortfolio,omitempty"`

	BuildingClass    string  `json:"buildingClass,omitempty"`
	YearBuilt        int     `json:"yearBuilt,omitempty"`
	ResidentialUnits int     `json:"residentialUnits"`
	LotArea          float64 `json:"lotArea"`
	BuiltFAR         float64 `json:"builtFar"`

	LastSaleDate   *time.Time `json:"lastSaleDate,omitempty"`
	LastSaleAmount float64    `json:"lastSaleAmount,omitempty"`
	LastDeedType   string     `json:"lastDeedType,omitempty"`
	TenureMonths   *int       `json:"tenureMonths,omitempty"`

	Deeds        int                 `json:"deeds"`
	Mortgages    int                 `json:"mortgages"`
	Permits      int                 `json:"permits"`
	Complaints   int                 `json:"complaints"`
	Violations   int                 `json:"violations"`
	Registration *model.Registration `json:"registration,omitempty"`

	Score        float64       `json:"score"`
	SignalBadges []string      `json:"signalBadges"`
	Signals      model.Signals `json:"signals"`
}

// Build projects res into a snapshot. version <= 0 selects CurrentVersion.
func Build(res *model.RunResult, version int) *Snapshot {
	if version <= 0 {
		version = CurrentVersion
	}
	snap := &Snapshot{
		Version:     version,
		LastUpdated: res.FinishedAt.UTC(),
		Borough:     res.Area.Borough,
		AreaCode:    res.Area.Code,
		AreaName:    res.Area.Name,
		Leads:       make([]Lead, 0, len(res.Leads)),
		Stats:       res.Stats,
		Progress:    res.Progress,
	}
	if snap.Progress == nil {
		snap.Progress = model.NewProgress()
	}
	for _, p := range res.Leads {
		snap.Leads = append(snap.Leads, NewLead(p))
	}
	return snap
}

// NewLead projects one parcel.
func NewLead(p *model.Parcel) Lead {
	l := Lead{
		BBL:              p.Key.String(),
		Borough:          p.Key.Borough(),
		Block:            p.Key.Block(),
		Lot:              p.Key.Lot(),
		Address:          p.Address,
		Neighborhood:     p.Neighborhood,
		ZipCode:          p.ZipCode,
		OwnerName:        p.OwnerName,
		PortfolioSize:    p.PortfolioSize,
		BuildingClass:    p.BuildingClass,
		YearBuilt:        p.YearBuilt,
		ResidentialUnits: p.ResidentialUnits,
		LotArea:          p.LotArea,
		BuiltFAR:         p.BuiltFAR,
		LastSaleDate:     p.LastSaleDate,
		LastSaleAmount:   p.LastSaleAmount,
		LastDeedType:     p.LastDeedType,
		TenureMonths:     p.TenureMonths,
		Deeds:            len(p.Deeds),
		Mortgages:        len(p.Mortgages),
		Permits:          len(p.Permits),
		Complaints:       len(p.Complaints),
		Violations:       len(p.Violations),
		Registration:     p.Registration,
		Score:            p.Score,
		SignalBadges:     p.Badges,
		Signals:          p.Signals,
	}
	if l.SignalBadges == nil {
		l.SignalBadges = []string{}
	}
	// Only link out to the rest of a real portfolio.
	if len(p.OwnerPortfolio) > 1 {
		l.OwnerPortfolio = make([]string, 0, len(p.OwnerPortfolio))
		for _, k := range p.OwnerPortfolio {
			l.OwnerPortfolio = append(l.OwnerPortfolio, k.String())
		}
	}
	return l
}

// BoroughName returns the display name of the snapshot's borough.
func (s *Snapshot) BoroughName() string {
	name, ok := parcel.BoroughName(s.Borough)
	if !ok {
		return s.Borough
	}
	return parcel.DisplayTitle(name)
}

// Marshal encodes the snapshot as indented JSON.
func Marshal(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: marshal")
	}
	return data, nil
}

// Unmarshal decodes a snapshot written by Marshal.
func Unmarshal(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "snapshot: unmarshal")
	}
	if snap.Progress == nil {
		snap.Progress = model.NewProgress()
	}
	return &snap, nil
}

// WriteFile writes snap to path through a temp file and rename, so
// readers never see a partial snapshot.
func WriteFile(path string, snap *Snapshot) (err error) {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "snapshot: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "snapshot: write")
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "snapshot: sync")
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close")
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "snapshot: rename to %s", path)
	}
	return nil
}

// ReadFile loads a snapshot from path.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", path)
	}
	return Unmarshal(data)
}

// FileName returns the conventional file name for an area's snapshot.
func FileName(borough, areaCode string) string {
	return "leads-" + borough + "-" + areaCode + ".json"
}
