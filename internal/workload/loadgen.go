package workload

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"ttsched/internal/config"
)

// constants characterizing generated ordinary load, in hardware ticks
const (
	MIN_WORK     = 2
	AVG_WORK     = 20
	STD_DEV_WORK = 15
	MAX_WORK     = 400

	PARETO_ALPHA = 25

	FRACTION_YIELDING = 0.5 // tasks that give the cpu up voluntarily
	MAX_YIELD_EVERY   = 8
)

// LoadGen makes up ordinary tasks: a heavy-tailed amount of work, some of
// them yielding every few ticks.
type LoadGen struct {
	src rand.Source
}

func NewLoadGen(seed uint64) *LoadGen {
	return &LoadGen{src: rand.NewSource(seed)}
}

func (lg *LoadGen) GenLoad(nTasks int) []config.TaskSpec {
	normal := distuv.Normal{Mu: AVG_WORK, Sigma: STD_DEV_WORK, Src: lg.src}
	yielding := distuv.Bernoulli{P: FRACTION_YIELDING, Src: lg.src}
	every := distuv.Uniform{Min: 1, Max: MAX_YIELD_EVERY, Src: lg.src}

	tasks := make([]config.TaskSpec, nTasks)
	for i := 0; i < nTasks; i++ {
		minWork := math.Max(math.Min(normal.Rand(), MAX_WORK), MIN_WORK)
		pareto := distuv.Pareto{Xm: minWork, Alpha: PARETO_ALPHA, Src: lg.src}
		work := math.Min(pareto.Rand(), MAX_WORK)

		tasks[i] = config.TaskSpec{
			Name: fmt.Sprintf("gen%d", i),
			Kind: config.KIND_ORDINARY,
			Work: uint64(math.Ceil(work)),
		}
		if yielding.Rand() == 1 {
			tasks[i].YieldEvery = uint64(every.Rand())
		}
	}
	return tasks
}
