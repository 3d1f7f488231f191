// World generation using layered simplex noise.
// Generates a height map and a terrain map, then assigns manifest terrain
// types by weighted noise bands.
package world

import (
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/emergence/internal/manifest"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius int   // Hex grid radius
	Seed   int64 // Random seed (0 = random)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius: 12,
		Seed:   0,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius: 3,
		Seed:   42,
	}
}

// Generate creates a complete world map with terrain drawn from the manifest.
func Generate(cfg GenConfig, terrain *manifest.Manifest) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	heightNoise := opensimplex.NewNormalized(seed)
	terrainNoise := opensimplex.NewNormalized(seed + 1)
	bands := terrainBands(terrain)

	m := NewMap(cfg.Radius)

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			height := octaveNoise(heightNoise, x, y, 3, 0.1, 0.5)
			sample := octaveNoise(terrainNoise, x, y, 2, 0.15, 0.5)

			m.Set(&Tile{
				Coord:   coord,
				Terrain: pickTerrain(bands, sample),
				Height:  height,
			})
		}
	}

	return m
}

type terrainBand struct {
	id    manifest.TerrainID
	upper float64
}

// terrainBands splits [0,1] into consecutive bands proportional to terrain weights.
// Terrain without a weight gets an equal share.
func terrainBands(m *manifest.Manifest) []terrainBand {
	ids := m.TerrainIDs()
	if len(ids) == 0 {
		return nil
	}

	// Heavier terrain first so the common type fills the middle of the noise range.
	sort.SliceStable(ids, func(i, j int) bool {
		return weightOf(m, ids[i]) > weightOf(m, ids[j])
	})

	total := 0.0
	for _, id := range ids {
		total += weightOf(m, id)
	}

	bands := make([]terrainBand, 0, len(ids))
	acc := 0.0
	for _, id := range ids {
		acc += weightOf(m, id) / total
		bands = append(bands, terrainBand{id: id, upper: acc})
	}
	bands[len(bands)-1].upper = 1.0
	return bands
}

func weightOf(m *manifest.Manifest, id manifest.TerrainID) float64 {
	w := m.Terrain[id].Weight
	if w <= 0 {
		return 1.0
	}
	return w
}

func pickTerrain(bands []terrainBand, sample float64) manifest.TerrainID {
	for _, b := range bands {
		if sample <= b.upper {
			return b.id
		}
	}
	if len(bands) == 0 {
		return ""
	}
	return bands[len(bands)-1].id
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCount is the number of tiles of one terrain type.
type TerrainCount struct {
	Terrain manifest.TerrainID
	Count   int
}

// TerrainCounts returns the terrain distribution ordered by terrain ID.
func TerrainCounts(m *Map) []TerrainCount {
	counts := make(map[manifest.TerrainID]int)
	for _, t := range m.Tiles {
		counts[t.Terrain]++
	}
	out := make([]TerrainCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, TerrainCount{Terrain: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Terrain < out[j].Terrain })
	return out
}
