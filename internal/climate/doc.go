// Package climate defines the coupled two-country economy and CO2 model.
//
// The state vector has five components in fixed order:
//
//	0  r    richer country's GDP
//	1  p    poorer country's GDP
//	2  I_r  richer country's innovation capacity
//	3  I_p  poorer country's innovation capacity
//	4  c    global CO2 concentration
//
// All values are normalized so that the richer country's present-day GDP
// and today's CO2 concentration are 1. GDP follows logistic growth with a
// carrying capacity proportional to innovation; innovation tracks GDP growth,
// with a fraction M_p of the richer country's growth transferred to the
// poorer country; CO2 accumulates from both economies with no sink.
//
// Natural disasters are discrete: [Model.Disaster] gives the GDP lost at the
// end of every f-th year. The model itself is a pure derivative evaluator and
// never mutates after [New].
package climate
