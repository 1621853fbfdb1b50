package service

import (
	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
)

const serviceName = "LakeB2B Pitch Deck Creator"

func Health() api.Health {
	return api.Health{Status: "ok", Service: serviceName}
}
