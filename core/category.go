package core

import "fmt"

// EntityCategory classifies an extracted entity. The fixed enumeration
// covers the categories the extraction collaborator emits for structured
// legal and study texts; domain-specific additions are registered through
// CategoryConfig rather than by extending the enum.
type EntityCategory int

const (
	// EntityConcept is a defined term or abstract notion.
	EntityConcept EntityCategory = iota + 1
	// EntityProcedure is a described process or sequence of steps.
	EntityProcedure
	// EntityDeadline is a time limit or period.
	EntityDeadline
	// EntityDocumentRef is a reference to a document or form.
	EntityDocumentRef
	// EntityStatutoryRef is a reference to a statute, section, or regulation.
	EntityStatutoryRef
	// EntityActor is a person, role, or body that acts.
	EntityActor
	// EntityConsequence is an outcome or sanction.
	EntityConsequence

	// EntityCategoryExtensionBase is the first value available for
	// domain-specific categories registered via CategoryConfig.
	EntityCategoryExtensionBase EntityCategory = 100
)

// RelationshipCategory classifies a relationship between entities.
type RelationshipCategory int

const (
	// RelDeonticObligation links an actor to something it must do.
	RelDeonticObligation RelationshipCategory = iota + 1
	// RelDeonticPermission links an actor to something it may do.
	RelDeonticPermission
	// RelDeonticProhibition links an actor to something it must not do.
	RelDeonticProhibition
	// RelLegalEffect links a trigger to its legal consequence.
	RelLegalEffect
	// RelEntitlement links an actor to a right or benefit.
	RelEntitlement
	// RelConstraint limits the scope or applicability of its subject.
	RelConstraint
	// RelWorkflowSequence orders two procedural steps.
	RelWorkflowSequence
	// RelCrossSourceRef links entities across source boundaries. This is the
	// only category whose object may live in a different source.
	RelCrossSourceRef
	// RelGeneric covers links with no more specific category.
	RelGeneric

	// RelationshipCategoryExtensionBase is the first value available for
	// domain-specific categories registered via CategoryConfig.
	RelationshipCategoryExtensionBase RelationshipCategory = 100
)

var entityCategoryNames = map[EntityCategory]string{
	EntityConcept:      "concept",
	EntityProcedure:    "procedure",
	EntityDeadline:     "deadline",
	EntityDocumentRef:  "document-reference",
	EntityStatutoryRef: "statutory-reference",
	EntityActor:        "actor",
	EntityConsequence:  "consequence",
}

var relationshipCategoryNames = map[RelationshipCategory]string{
	RelDeonticObligation:  "deontic-obligation",
	RelDeonticPermission:  "deontic-permission",
	RelDeonticProhibition: "deontic-prohibition",
	RelLegalEffect:        "legal-effect",
	RelEntitlement:        "entitlement",
	RelConstraint:         "constraint",
	RelWorkflowSequence:   "workflow-sequence",
	RelCrossSourceRef:     "cross-source-reference",
	RelGeneric:            "generic",
}

// String returns the wire name of the category, or "unknown".
func (c EntityCategory) String() string {
	if name, ok := entityCategoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("entity-category(%d)", int(c))
}

// String returns the wire name of the category, or "unknown".
func (c RelationshipCategory) String() string {
	if name, ok := relationshipCategoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("relationship-category(%d)", int(c))
}

// CategoryConfig maps wire-format category names onto enum values, carries
// the per-category attribute vocabulary, and marks which entity categories
// have normalizable surface forms. Taxonomy expansion is a configuration
// change: register extension categories here instead of editing the enums.
type CategoryConfig struct {
	entityByName   map[string]EntityCategory
	relByName      map[string]RelationshipCategory
	allowedAttrs   map[EntityCategory]map[string]bool
	predicates     map[RelationshipCategory]map[string]bool
	normalizable   map[EntityCategory]bool
	nextEntity     EntityCategory
	nextRel        RelationshipCategory
	entityNames    map[EntityCategory]string
	relNames       map[RelationshipCategory]string
}

// DefaultCategoryConfig returns the built-in taxonomy: the fixed entity and
// relationship enumerations, the default attribute vocabulary, and "actor"
// as the sole normalizable category.
func DefaultCategoryConfig() *CategoryConfig {
	cfg := &CategoryConfig{
		entityByName: make(map[string]EntityCategory),
		relByName:    make(map[string]RelationshipCategory),
		allowedAttrs: make(map[EntityCategory]map[string]bool),
		predicates:   make(map[RelationshipCategory]map[string]bool),
		normalizable: map[EntityCategory]bool{EntityActor: true},
		nextEntity:   EntityCategoryExtensionBase,
		nextRel:      RelationshipCategoryExtensionBase,
		entityNames:  make(map[EntityCategory]string),
		relNames:     make(map[RelationshipCategory]string),
	}
	for cat, name := range entityCategoryNames {
		cfg.entityByName[name] = cat
		cfg.entityNames[cat] = name
	}
	for cat, name := range relationshipCategoryNames {
		cfg.relByName[name] = cat
		cfg.relNames[cat] = name
	}
	cfg.allowedAttrs[EntityConcept] = attrSet("name", "definition", "scope")
	cfg.allowedAttrs[EntityProcedure] = attrSet("name", "initiator", "steps", "outcome")
	cfg.allowedAttrs[EntityDeadline] = attrSet("duration", "trigger", "consequence", "extendable")
	cfg.allowedAttrs[EntityDocumentRef] = attrSet("title", "form", "issuer")
	cfg.allowedAttrs[EntityStatutoryRef] = attrSet("citation", "act", "provision")
	cfg.allowedAttrs[EntityActor] = attrSet("role", "description", "powers")
	cfg.allowedAttrs[EntityConsequence] = attrSet("effect", "trigger", "severity")
	return cfg
}

func attrSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// RegisterEntityCategory adds a domain-specific entity category with its
// attribute vocabulary. Returns the assigned enum value.
func (cfg *CategoryConfig) RegisterEntityCategory(name string, normalizable bool, attrs ...string) EntityCategory {
	if existing, ok := cfg.entityByName[name]; ok {
		return existing
	}
	cat := cfg.nextEntity
	cfg.nextEntity++
	cfg.entityByName[name] = cat
	cfg.entityNames[cat] = name
	cfg.allowedAttrs[cat] = attrSet(attrs...)
	if normalizable {
		cfg.normalizable[cat] = true
	}
	return cat
}

// RegisterRelationshipCategory adds a domain-specific relationship category
// with an optional bounded predicate vocabulary.
func (cfg *CategoryConfig) RegisterRelationshipCategory(name string, predicates ...string) RelationshipCategory {
	if existing, ok := cfg.relByName[name]; ok {
		return existing
	}
	cat := cfg.nextRel
	cfg.nextRel++
	cfg.relByName[name] = cat
	cfg.relNames[cat] = name
	if len(predicates) > 0 {
		cfg.predicates[cat] = attrSet(predicates...)
	}
	return cat
}

// RestrictPredicates bounds the predicate vocabulary for a category. An
// unrestricted category accepts any predicate.
func (cfg *CategoryConfig) RestrictPredicates(cat RelationshipCategory, predicates ...string) {
	cfg.predicates[cat] = attrSet(predicates...)
}

// EntityCategoryByName resolves a wire-format category name.
func (cfg *CategoryConfig) EntityCategoryByName(name string) (EntityCategory, bool) {
	cat, ok := cfg.entityByName[name]
	return cat, ok
}

// RelationshipCategoryByName resolves a wire-format category name.
func (cfg *CategoryConfig) RelationshipCategoryByName(name string) (RelationshipCategory, bool) {
	cat, ok := cfg.relByName[name]
	return cat, ok
}

// EntityCategoryName returns the wire name for a category, covering
// registered extensions.
func (cfg *CategoryConfig) EntityCategoryName(cat EntityCategory) string {
	if name, ok := cfg.entityNames[cat]; ok {
		return name
	}
	return cat.String()
}

// Normalizable reports whether the category's surface forms should be
// clustered by the alias resolver.
func (cfg *CategoryConfig) Normalizable(cat EntityCategory) bool {
	return cfg.normalizable[cat]
}

// AllowedAttr reports whether the attribute name is valid for the category.
// Categories with no registered vocabulary accept any attribute.
func (cfg *CategoryConfig) AllowedAttr(cat EntityCategory, name string) bool {
	set, ok := cfg.allowedAttrs[cat]
	if !ok || len(set) == 0 {
		return true
	}
	return set[name]
}

// AllowedPredicate reports whether the predicate is in the category's
// bounded vocabulary. Unrestricted categories accept any predicate.
func (cfg *CategoryConfig) AllowedPredicate(cat RelationshipCategory, predicate string) bool {
	set, ok := cfg.predicates[cat]
	if !ok || len(set) == 0 {
		return true
	}
	return set[predicate]
}
