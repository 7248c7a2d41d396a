// Package neat implements NeuroEvolution of Augmenting Topologies with the
// semantics and configuration file format of neat-python.
//
// A run loads a configuration, builds a population and hands each generation
// to a fitness function:
//
//	config, err := neat.LoadConfig("config-feedforward")
//	if err != nil {
//		return err
//	}
//	pop, err := neat.NewPopulation(config)
//	if err != nil {
//		return err
//	}
//	pop.AddReporter(neat.NewStdOutReporter(log.Default(), true))
//	winner, err := pop.Run(func(genomes map[int]*neat.Genome) error {
//		for _, g := range genomes {
//			g.SetFitness(score(g))
//		}
//		return nil
//	}, 100)
//
// Population.Generation always names the generation that will be evaluated
// next, so a population restored with LoadCheckpoint resumes where the saved
// run stopped.
package neat
