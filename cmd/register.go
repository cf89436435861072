package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/capture/webcam"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceclient"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Enroll a student in a class",
	Long: `Enroll a student in a class roster and store their reference image.

The reference image is read from --image or captured from the camera. It must
contain a detectable face unless --skip-check is given. The name is appended
to classes/<class>.txt unless it is already listed.

Examples:
  # Capture the reference image from the first camera
  face-attendance register "Alice Smith" --class CSE-A

  # Use an existing photo
  face-attendance register "Bob Jones" --class CSE-B --image bob.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("class", "", "Class (section) to enroll into")
	registerCmd.Flags().String("image", "", "Reference image file (captured from the camera when empty)")
	registerCmd.Flags().Int("device", -1, "Camera index (defaults to CAMERA_DEVICE)")
	registerCmd.Flags().Duration("timeout", 15*time.Second, "How long to wait for a face on the camera")
	registerCmd.Flags().Bool("skip-check", false, "Store the image without checking it for a face")
	registerCmd.MarkFlagRequired("class")
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	// Unlike record, an unknown section is an error here.
	input := mustGetString(cmd, "class")
	if !a.cfg.Classes.IsValidClass(input) {
		return fmt.Errorf("invalid class %q, valid classes are %v", input, a.cfg.Classes.Valid)
	}
	classID := config.NormalizeClass(input)

	var enc roster.Encoder
	client := faceclient.New(a.cfg.Embedding.URL)
	if !mustGetBool(cmd, "skip-check") {
		enc = client
	}

	var image []byte
	if path := mustGetString(cmd, "image"); path != "" {
		if image, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
	} else {
		device := mustGetInt(cmd, "device")
		if device < 0 {
			device = a.cfg.Capture.Device
		}
		fmt.Fprintln(out, "Look at the camera...")
		if image, err = captureFace(cmd.Context(), device, mustGetDuration(cmd, "timeout"), client); err != nil {
			return err
		}
	}

	res, err := a.rosters.RegisterStudent(cmd.Context(), classID, args[0], image, enc)
	if errors.Is(err, roster.ErrNoFaceInImage) {
		return fmt.Errorf("no face found in the reference image of %s", args[0])
	}
	if err != nil {
		return err
	}

	if res.ImagePath != "" {
		fmt.Fprintf(out, "Saved reference image to %s\n", res.ImagePath)
	}
	if res.AlreadyExists {
		fmt.Fprintf(out, "%s is already enrolled in %s\n", res.Name, classID)
	} else {
		fmt.Fprintf(out, "Enrolled %s in %s\n", res.Name, classID)
	}
	return nil
}

// captureFace reads camera frames until the face service finds a face in one
// and returns that frame as JPEG.
func captureFace(ctx context.Context, device int, timeout time.Duration, client *faceclient.Client) ([]byte, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, err
	}
	defer cam.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		frame, err := cam.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("no face detected within %s", timeout)
			}
			return nil, err
		}

		data, err := capture.EncodeJPEG(frame.Image)
		if err != nil {
			return nil, err
		}
		faces, err := client.DetectFaces(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("no face detected within %s", timeout)
			}
			return nil, fmt.Errorf("face detection failed: %w", err)
		}
		if len(faces) > 0 {
			return data, nil
		}
	}
}
