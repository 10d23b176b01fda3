// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package commands holds the okapi CLI. The root command runs the
// renderer, subcommands build renderpack archives and report on the
// available GPUs.
package commands

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"runtime/pprof"
	"strings"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/okapi3d/okapi/model"
	"github.com/okapi3d/okapi/renderer"
	"github.com/okapi3d/okapi/rhi"
)

var (
	envFile     string
	packName    string
	packDir     string
	apiName     string
	cpuProfile  string
	meshFile    string
	materialAt  string
	textureFile string
	frameRate   int
)

var rootCmd = &cobra.Command{
	Use:   "okapi",
	Short: "A graphics API agnostic rendering engine",
	Long: `Okapi renders data-driven frame graphs loaded from renderpack
archives. The backend is selected at startup: Vulkan, WebGPU or a
headless null device for testing.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	RunE:         runRenderer,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load before reading settings")
	rootCmd.PersistentFlags().StringVar(&apiName, "api", "", "override the graphics API (vulkan, webgpu, null)")
	rootCmd.Flags().StringVar(&packName, "pack", "default", "renderpack to load at startup")
	rootCmd.Flags().StringVar(&packDir, "packs", "./renderpacks", "directory holding .opk archives")
	rootCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	rootCmd.Flags().StringVar(&meshFile, "mesh", "", "COLLADA (.dae) mesh to load into the scene")
	rootCmd.Flags().StringVar(&materialAt, "material", "", "material/pass to draw the mesh with, as material:pass")
	rootCmd.Flags().StringVar(&textureFile, "texture", "", "image to upload as the SceneTexture binding")
	rootCmd.Flags().IntVar(&frameRate, "fps", 60, "frame rate cap, 0 for uncapped")
}

func loadSettings() renderer.Settings {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.WithField("file", envFile).Warn("Could not load env file")
		}
	} else {
		godotenv.Load()
	}

	settings := renderer.SettingsFromEnv()
	switch apiName {
	case "vulkan":
		settings.API = rhi.APIVulkan
	case "webgpu":
		settings.API = rhi.APIWebGPU
	case "null":
		settings.API = rhi.APINull
	case "":
	default:
		log.WithField("api", apiName).Warn("Unknown graphics API, keeping configured one")
	}
	return settings
}

func runRenderer(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("cpu profile: %w", err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	settings := loadSettings()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("sdl.Init(): %w", err)
	}
	defer sdl.Quit()

	window, err := newWindow(settings)
	if err != nil {
		return err
	}
	defer window.Destroy()

	device, cleanup, err := createDevice(settings, window)
	if err != nil {
		return err
	}
	defer cleanup()

	reflector := renderer.NewTableReflector()
	loader := &renderer.PakLoader{Dir: packDir, Reflector: reflector}

	r, err := renderer.NewRenderer(settings, device, reflector, loader)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer r.Destroy()

	if textureFile != "" {
		if err := loadSceneTexture(r, textureFile); err != nil {
			return err
		}
	}

	if err := r.LoadRenderpack(packName); err != nil {
		return fmt.Errorf("renderpack %s: %w", packName, err)
	}

	if meshFile != "" {
		if err := loadSceneMesh(r, meshFile, materialAt); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"api":  settings.API.String(),
		"pack": packName,
	}).Info("Renderer running")

	return eventLoop(r, settings)
}

func newWindow(settings renderer.Settings) (*sdl.Window, error) {
	var flags uint32 = sdl.WINDOW_SHOWN
	if settings.API == rhi.APIVulkan {
		flags |= sdl.WINDOW_VULKAN
	}
	window, err := sdl.CreateWindow(settings.AppName,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(settings.Screen.Width),
		int32(settings.Screen.Height),
		flags)
	if err != nil {
		return nil, fmt.Errorf("sdl.CreateWindow(): %w", err)
	}
	return window, nil
}

func eventLoop(r *renderer.Renderer, settings renderer.Settings) error {
	projection := glm.Perspective(glm.DegToRad(60.0),
		float32(settings.Screen.Width)/float32(settings.Screen.Height), 0.1, 1000.0)
	view := glm.LookAtV(
		glm.Vec3{0, 2, 5},
		glm.Vec3{0, 0, 0},
		glm.Vec3{0, 1, 0})
	r.SetPerFrameUniforms(model.PerFrameUniforms{
		View:           view,
		Projection:     projection,
		CameraPosition: glm.Vec4{0, 2, 5, 1},
	})

	pacer := newPacer(pacerConfig{FramesPerSecond: frameRate, EventPollDelay: 10})
	defer pacer.Stop()

	for {
		select {
		case <-pacer.Events():
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						log.Info("Event loop exited")
						return nil
					}
				case *sdl.QuitEvent:
					log.Info("Event loop exited")
					return nil
				}
			}
		case <-pacer.Frames():
			if err := r.ExecuteFrame(); err != nil {
				log.WithError(err).Error("Frame failed")
			}
		}
	}
}

// sceneTextureName is the binding name --texture uploads register
// under, resolvable from renderpack materials.
const sceneTextureName = "SceneTexture"

// loadSceneTexture decodes an image file and uploads it before the
// renderpack loads, so material bindings can resolve it.
func loadSceneTexture(r *renderer.Renderer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("texture %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("texture %s: %w", path, err)
	}
	if err := r.CreateTexture(sceneTextureName, img); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"texture": path,
		"binding": sceneTextureName,
	}).Info("Scene texture loaded")
	return nil
}

// loadSceneMesh imports a COLLADA file and registers it under the
// requested material pass, given as "material:pass".
func loadSceneMesh(r *renderer.Renderer, path, target string) error {
	material, pass, ok := strings.Cut(target, ":")
	if !ok {
		return fmt.Errorf("material %q is not of the form material:pass", target)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mesh %s: %w", path, err)
	}
	vertices, indices, err := model.ImportCollada(contents)
	if err != nil {
		return fmt.Errorf("mesh %s: %w", path, err)
	}

	id, err := r.CreateMesh(renderer.MeshData{Vertices: vertices, Indices: indices})
	if err != nil {
		return fmt.Errorf("mesh %s: %w", path, err)
	}

	renderable := r.AddRenderableForMaterial(renderer.FullMaterialPassName{
		MaterialName: material,
		PassName:     pass,
	}, renderer.RenderableUpdateData{
		Mesh:         id,
		InitialModel: glm.Ident4(),
		Visible:      true,
	})
	if renderable == renderer.InvalidRenderableID {
		return fmt.Errorf("material pass %s not present in renderpack", target)
	}

	log.WithFields(log.Fields{
		"mesh":     path,
		"material": target,
		"vertices": len(vertices),
	}).Info("Scene mesh loaded")
	return nil
}
