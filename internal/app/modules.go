package app

import (
	"mutool.ai/internal/module"
	"mutool.ai/internal/module/autopotion"
	"mutool.ai/internal/module/autorepair"
	"mutool.ai/internal/module/bufftimer"
	"mutool.ai/internal/module/deathnotifier"
	"mutool.ai/internal/module/lootfilter"
	"mutool.ai/internal/module/lootnotifier"
	"mutool.ai/internal/module/userstats"
)

// DefaultSpecs lists every module in default pipeline order.
func DefaultSpecs() []module.Spec {
	return []module.Spec{
		autopotion.Spec(),
		autorepair.Spec(),
		bufftimer.Spec(),
		deathnotifier.Spec(),
		lootfilter.Spec(),
		lootnotifier.Spec(),
		userstats.Spec(),
	}
}
