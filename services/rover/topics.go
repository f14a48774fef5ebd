package rover

import "rovercode-go/bus"

// Bus topics published by the service.
var (
	TopicState       = bus.T("rover", "state")
	TopicPWM         = bus.T("rover", "pwm")
	TopicDrive       = bus.T("rover", "drive")
	TopicSteer       = bus.T("rover", "steer")
	TopicDAC         = bus.T("rover", "dac")
	TopicTemperature = bus.T("rover", "temperature")
	TopicRange       = bus.T("rover", "range")
	TopicCoproc      = bus.T("rover", "coproc")
	// TopicGet is the request prefix answered by Serve: rover/get/<what>.
	TopicGet = bus.T("rover", "get")
)

func dacTopic(name string) bus.Topic      { return TopicDAC.Append(name) }
func dacFaultTopic(name string) bus.Topic { return TopicDAC.Append(name, "fault") }
