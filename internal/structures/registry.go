package structures

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/emergence/internal/inventory"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// ErrCannotPlace is returned when a structure or ghost cannot go on a tile.
var ErrCannotPlace = errors.New("cannot place")

// Registry owns every structure and ghost and keeps the map's occupancy
// index in step with them. It is the structure lifecycle collaborator:
// spawn, despawn and construction all go through it.
type Registry struct {
	world    *world.Map
	manifest *manifest.Manifest

	nextID     world.EntityID
	structures map[world.EntityID]*Structure
	ghosts     map[world.EntityID]*Ghost
}

// NewRegistry creates an empty registry over the given map.
func NewRegistry(m *world.Map, man *manifest.Manifest) *Registry {
	return &Registry{
		world:      m,
		manifest:   man,
		nextID:     1,
		structures: make(map[world.EntityID]*Structure),
		ghosts:     make(map[world.EntityID]*Ghost),
	}
}

func (r *Registry) allocID() world.EntityID {
	id := r.nextID
	r.nextID++
	return id
}

// SpawnStructure builds a structure of the given kind at tile immediately.
func (r *Registry) SpawnStructure(kind manifest.StructureID, tile world.HexCoord) (*Structure, error) {
	data, ok := r.manifest.Structure(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown structure %q", ErrCannotPlace, kind)
	}
	if err := r.checkTerrain(data, tile); err != nil {
		return nil, err
	}

	s := &Structure{
		ID:      r.allocID(),
		Kind:    kind,
		Tile:    tile,
		Workers: NewWorkersPresent(data.MaxWorkers),
	}

	switch data.Kind {
	case manifest.KindStorage:
		s.Storage = inventory.NewStorage(data.Storage.MaxSlotCount, data.Storage.ReservedFor)
	case manifest.KindCrafting:
		s.Input = inventory.NewFixed(nil)
		s.Output = inventory.NewFixed(nil)
		if recipe, ok := r.manifest.Recipe(data.Recipe); ok {
			s.Recipe = data.Recipe
			s.Crafting = CraftingNeedsInput
			s.Input = inventory.NewFixed(r.slotCapacities(recipe.Inputs))
			s.Output = inventory.NewFixed(r.slotCapacities(recipe.Outputs))
		}
	}

	if err := r.world.AddStructure(s.ID, []world.HexCoord{tile}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotPlace, err)
	}
	r.structures[s.ID] = s
	return s, nil
}

// slotCapacities sizes one slot per recipe item at the larger of the recipe
// count and the item's stack size.
func (r *Registry) slotCapacities(counts []manifest.ItemCount) []manifest.ItemCount {
	out := make([]manifest.ItemCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, manifest.ItemCount{Item: c.Item, Count: max(c.Count, r.manifest.StackSize(c.Item))})
	}
	return out
}

func (r *Registry) checkTerrain(data manifest.StructureData, tile world.HexCoord) error {
	terrain, ok := r.world.TerrainAt(tile)
	if !ok {
		return fmt.Errorf("%w: tile %s is not on the map", ErrCannotPlace, tile)
	}
	if !data.AllowedOn(terrain) {
		return fmt.Errorf("%w: terrain %q not allowed", ErrCannotPlace, terrain)
	}
	return nil
}

// DespawnStructure removes the structure at tile. It reports whether anything was removed.
func (r *Registry) DespawnStructure(tile world.HexCoord) bool {
	id, ok := r.world.StructureAt(tile)
	if !ok {
		return false
	}
	r.world.RemoveStructure(id)
	delete(r.structures, id)
	return true
}

// SpawnGhost queues construction of kind at tile, replacing any existing ghost there.
func (r *Registry) SpawnGhost(kind manifest.StructureID, tile world.HexCoord) (*Ghost, error) {
	data, ok := r.manifest.Structure(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown structure %q", ErrCannotPlace, kind)
	}
	if err := r.checkTerrain(data, tile); err != nil {
		return nil, err
	}
	if _, occupied := r.world.StructureAt(tile); occupied {
		return nil, fmt.Errorf("%w: tile %s already holds a structure", ErrCannotPlace, tile)
	}

	seats := data.MaxWorkers
	if data.Construction.Work > 0 && seats == 0 {
		seats = 1
	}
	g := &Ghost{
		ID:            r.allocID(),
		Kind:          kind,
		Tile:          tile,
		Input:         inventory.NewFixed(data.Construction.Materials),
		Workers:       NewWorkersPresent(seats),
		WorkRemaining: data.Construction.Work,
	}

	replaced, err := r.world.AddGhost(g.ID, tile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotPlace, err)
	}
	if replaced != world.NoEntity {
		delete(r.ghosts, replaced)
	}
	r.ghosts[g.ID] = g
	return g, nil
}

// DespawnGhost removes the ghost at tile. It reports whether anything was removed.
func (r *Registry) DespawnGhost(tile world.HexCoord) bool {
	id, ok := r.world.RemoveGhost(tile)
	if !ok {
		return false
	}
	delete(r.ghosts, id)
	return true
}

// MarkForDemolition flags the structure at tile for demolition.
func (r *Registry) MarkForDemolition(tile world.HexCoord) bool {
	id, ok := r.world.StructureAt(tile)
	if !ok {
		return false
	}
	r.structures[id].MarkedForDemolition = true
	return true
}

// Structure looks up a structure by id.
func (r *Registry) Structure(id world.EntityID) (*Structure, bool) {
	s, ok := r.structures[id]
	return s, ok
}

// Ghost looks up a ghost by id.
func (r *Registry) Ghost(id world.EntityID) (*Ghost, bool) {
	g, ok := r.ghosts[id]
	return g, ok
}

// Structures returns every structure ordered by id.
func (r *Registry) Structures() []*Structure {
	out := make([]*Structure, 0, len(r.structures))
	for _, s := range r.structures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ghosts returns every ghost ordered by id.
func (r *Registry) Ghosts() []*Ghost {
	out := make([]*Ghost, 0, len(r.ghosts))
	for _, g := range r.ghosts {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Inventories returns the container view of a structure or ghost.
func (r *Registry) Inventories(id world.EntityID) (Inventories, bool) {
	if s, ok := r.structures[id]; ok {
		return Inventories{
			Input:               s.Input,
			Output:              s.Output,
			Storage:             s.Storage,
			MarkedForDemolition: s.MarkedForDemolition,
		}, true
	}
	if g, ok := r.ghosts[id]; ok {
		return Inventories{Input: g.Input, Ghost: true}, true
	}
	return Inventories{}, false
}

// Workers returns the seat counter of a structure or ghost.
func (r *Registry) Workers(id world.EntityID) (*WorkersPresent, bool) {
	if s, ok := r.structures[id]; ok {
		return s.Workers, true
	}
	if g, ok := r.ghosts[id]; ok {
		return g.Workers, true
	}
	return nil, false
}

// Tile returns where an entity stands.
func (r *Registry) Tile(id world.EntityID) (world.HexCoord, bool) {
	if s, ok := r.structures[id]; ok {
		return s.Tile, true
	}
	if g, ok := r.ghosts[id]; ok {
		return g.Tile, true
	}
	return world.HexCoord{}, false
}

// NeedsWork returns the workplace of kind at tile that still has a free seat
// and work to be done. Structures are checked before ghosts.
func (r *Registry) NeedsWork(tile world.HexCoord, kind manifest.StructureID) (world.EntityID, bool) {
	if id, ok := r.world.StructureAt(tile); ok {
		s := r.structures[id]
		if s.Kind == kind && !s.MarkedForDemolition && s.Crafting == CraftingInProgress &&
			r.recipeNeedsWorkers(s.Recipe) && s.Workers.NeedsMore() {
			return id, true
		}
	}
	if id, ok := r.world.GhostAt(tile); ok {
		g := r.ghosts[id]
		if g.Kind == kind && g.MaterialsDelivered() && g.WorkRemaining > 0 && g.Workers.NeedsMore() {
			return id, true
		}
	}
	return world.NoEntity, false
}

// StillNeedsWork reports whether a workplace still has work to do, ignoring seats.
func (r *Registry) StillNeedsWork(id world.EntityID) bool {
	if s, ok := r.structures[id]; ok {
		return !s.MarkedForDemolition && s.Crafting == CraftingInProgress && r.recipeNeedsWorkers(s.Recipe)
	}
	if g, ok := r.ghosts[id]; ok {
		return g.MaterialsDelivered() && g.WorkRemaining > 0
	}
	return false
}

func (r *Registry) recipeNeedsWorkers(id manifest.RecipeID) bool {
	recipe, ok := r.manifest.Recipe(id)
	return ok && recipe.WorkersRequired > 0
}

// NeedsDemolition returns the structure of kind at tile that is marked for
// demolition and has room for another demolisher.
func (r *Registry) NeedsDemolition(tile world.HexCoord, kind manifest.StructureID) (world.EntityID, bool) {
	id, ok := r.world.StructureAt(tile)
	if !ok {
		return world.NoEntity, false
	}
	s := r.structures[id]
	if s.Kind != kind || !s.MarkedForDemolition || !s.Workers.NeedsMore() {
		return world.NoEntity, false
	}
	return id, true
}

// Craft advances every crafting structure by dt.
func (r *Registry) Craft(dt time.Duration) {
	for _, s := range r.Structures() {
		recipe, ok := r.manifest.Recipe(s.Recipe)
		if !ok {
			continue
		}
		switch s.Crafting {
		case CraftingNeedsInput:
			if r.consumeInputs(s, recipe) {
				s.Crafting = CraftingInProgress
				s.Progress = 0
			}
		case CraftingInProgress:
			if recipe.WorkersRequired > 0 && s.Workers.Current < recipe.WorkersRequired {
				continue
			}
			s.Progress += dt
			if s.Progress >= recipe.CraftTime {
				s.Crafting = CraftingFullOutput
				r.emitOutputs(s, recipe)
			}
		case CraftingFullOutput:
			r.emitOutputs(s, recipe)
		}
	}
}

func (r *Registry) consumeInputs(s *Structure, recipe manifest.RecipeData) bool {
	for _, in := range recipe.Inputs {
		if s.Input.ItemCount(in.Item) < in.Count {
			return false
		}
	}
	for _, in := range recipe.Inputs {
		if err := s.Input.RemoveAllOrNothing(in); err != nil {
			// Counts were checked above; a failure here means the recipe lists an item twice.
			slog.Warn("recipe input removal failed", "structure", s.ID, "error", err)
			return false
		}
	}
	return true
}

// emitOutputs places all recipe outputs at once, or none if any would not fit.
func (r *Registry) emitOutputs(s *Structure, recipe manifest.RecipeData) {
	for _, out := range recipe.Outputs {
		if s.Output.RemainingSpaceFor(out.Item, r.manifest) < out.Count {
			return
		}
	}
	for _, out := range recipe.Outputs {
		if err := s.Output.AddAllOrNothing(out, r.manifest); err != nil {
			slog.Warn("recipe output failed", "structure", s.ID, "error", err)
			return
		}
	}
	s.Crafting = CraftingNeedsInput
	s.Progress = 0
}

// Construct advances every ghost by dt and turns finished ghosts into
// structures. It returns the structures completed this call.
func (r *Registry) Construct(dt time.Duration) []*Structure {
	var built []*Structure
	for _, g := range r.Ghosts() {
		if !g.MaterialsDelivered() {
			continue
		}
		if g.WorkRemaining > 0 {
			g.WorkRemaining -= dt * time.Duration(g.Workers.Current)
			if g.WorkRemaining > 0 {
				continue
			}
			g.WorkRemaining = 0
		}
		if _, occupied := r.world.StructureAt(g.Tile); occupied {
			continue
		}

		r.DespawnGhost(g.Tile)
		s, err := r.SpawnStructure(g.Kind, g.Tile)
		if err != nil {
			slog.Warn("construction failed", "kind", g.Kind, "tile", g.Tile.String(), "error", err)
			continue
		}
		built = append(built, s)
	}
	return built
}
