// Package planner implements the city short trip domain on top of the agent
// runtime: the trip request and its prompt, the coordinator agent hierarchy,
// the single process session, the run loop that extracts the itinerary from
// an event stream and the gateway that ties them together for transports.
package planner
