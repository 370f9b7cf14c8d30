package browser

// Device profiles used by the checks.
var (
	// Desktop matches the window the interactive Google tools are driven in.
	Desktop = Device{
		Name:     "Desktop",
		Viewport: Viewport{Width: 1400, Height: 1000},
	}

	// PageSpeedDesktop is the smaller desktop window for the PageSpeed report.
	PageSpeedDesktop = Device{
		Name:     "PageSpeed Desktop",
		Viewport: Viewport{Width: 1280, Height: 800},
	}

	IPhone13 = Device{
		Name:              "iPhone 13",
		UserAgent:         "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		Viewport:          Viewport{Width: 390, Height: 844},
		DeviceScaleFactor: 3,
		IsMobile:          true,
		HasTouch:          true,
	}

	// GoogleInspectionTool renders pages the way Search Console's live test does.
	GoogleInspectionTool = Device{
		Name:              "Google-InspectionTool",
		UserAgent:         "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/W.X.Y.Z Mobile Safari/537.36 (compatible; Google-InspectionTool/1.0)",
		Viewport:          Viewport{Width: 412, Height: 1200},
		DeviceScaleFactor: 1,
		IsMobile:          true,
		HasTouch:          true,
	}
)

var devicesByName = map[string]Device{
	"desktop":               Desktop,
	"pagespeed-desktop":     PageSpeedDesktop,
	"iphone-13":             IPhone13,
	"google-inspectiontool": GoogleInspectionTool,
}

// DeviceByName looks up a profile by its configuration key.
func DeviceByName(name string) (Device, bool) {
	d, ok := devicesByName[name]
	return d, ok
}
