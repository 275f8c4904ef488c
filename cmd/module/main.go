package main

import (
	"armservo"
	"armservo/models"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

func main() {
	// ModularMain can take multiple APIModel arguments, if your module implements multiple models.
	module.ModularMain(
		resource.APIModel{API: genericservice.API, Model: models.VisualServo},
		resource.APIModel{API: genericservice.API, Model: armservo.JointEstimator},
		resource.APIModel{API: generic.API, Model: models.SimulatedArm},
		resource.APIModel{API: camera.API, Model: models.ArmViewCamera},
	)
}
