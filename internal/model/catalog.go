package model

// ModelReference is one catalog entry for a brand: the static identity of a
// watch model. The pipeline only reads it; the catalog is owned by whoever
// seeds brand_models (see the catalog import command).
type ModelReference struct {
	ID           int64   `json:"id"`
	Brand        string  `json:"brand"`
	Collection   string  `json:"collection"`
	ModelName    string  `json:"model_name"`
	RefCode      string  `json:"ref_code"`
	MSRP         float64 `json:"msrp"` // 0 = unknown
	CaseMaterial string  `json:"case_material,omitempty"`
	Bracelet     string  `json:"bracelet,omitempty"`
	Dial         string  `json:"dial,omitempty"`
	SizeMM       float64 `json:"size_mm,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// Catalog indexes a brand's models by ID.
type Catalog struct {
	Brand  string
	Models []ModelReference

	byID map[int64]*ModelReference
}

// NewCatalog builds a Catalog from an ordered model list.
func NewCatalog(brand string, models []ModelReference) *Catalog {
	c := &Catalog{
		Brand:  brand,
		Models: models,
		byID:   make(map[int64]*ModelReference, len(models)),
	}
	for i := range models {
		c.byID[models[i].ID] = &models[i]
	}
	return c
}

// Lookup returns the model with the given ID, or nil if the catalog does not
// contain it.
func (c *Catalog) Lookup(modelID int64) *ModelReference {
	if c == nil {
		return nil
	}
	return c.byID[modelID]
}

// Len returns the number of models in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Models)
}
