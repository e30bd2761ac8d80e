package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"MOTION_CAPTURE/go-backend/internal/models"
)

var (
	backendURL  = flag.String("backend", "http://localhost:5000", "motion capture server URL")
	videoPath   = flag.String("video", "", "video file to upload")
	uploadToken = flag.String("token", os.Getenv("UPLOAD_TOKEN"), "upload token, if the server requires one")
	timeout     = flag.Duration("timeout", 10*time.Minute, "how long to wait for extraction")
)

var client = &http.Client{Timeout: 60 * time.Second}

// Проверка состояния
func testHealth() error {
	fmt.Println("\n[TEST] Testing /api/health...")
	resp, err := client.Get(*backendURL + "/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("✓ Health check: %s\n", string(body))
	return nil
}

// Загрузка видео
func testUpload(path string) (string, error) {
	fmt.Println("\n[TEST] Testing /upload...")

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open video: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read video: %v", err)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, *backendURL+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if *uploadToken != "" {
		req.Header.Set("X-Upload-Token", *uploadToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusConflict {
		return "", fmt.Errorf("another video is still being processed: %s", string(body))
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("upload failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result models.UploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %v", err)
	}

	fmt.Printf("✓ Upload accepted: job=%s file=%s\n", result.JobID, result.Filename)
	return result.JobID, nil
}

// Ожидание завершения
func testProgress(jobID string) (string, error) {
	fmt.Println("\n[TEST] Polling /progress...")

	deadline := time.Now().Add(*timeout)
	lastProgress := -1
	for time.Now().Before(deadline) {
		resp, err := client.Get(*backendURL + "/progress")
		if err != nil {
			return "", fmt.Errorf("progress request failed: %v", err)
		}
		var st models.JobStatus
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("failed to parse progress: %v", err)
		}

		if st.JobID != jobID {
			return "", fmt.Errorf("server is reporting job %q, expected %q", st.JobID, jobID)
		}
		if st.Progress < lastProgress {
			return "", fmt.Errorf("progress went backwards: %d -> %d", lastProgress, st.Progress)
		}
		if st.Progress != lastProgress {
			fmt.Printf("  - %3d%% %s\n", st.Progress, st.Message)
			lastProgress = st.Progress
		}

		switch st.State {
		case models.StateCompleted:
			if st.OutputFile == nil {
				return "", fmt.Errorf("job completed without an output file")
			}
			fmt.Printf("✓ Extraction complete: %s\n", *st.OutputFile)
			return *st.OutputFile, nil
		case models.StateFailed:
			return "", fmt.Errorf("job failed: %s", st.Message)
		}
		time.Sleep(500 * time.Millisecond)
	}
	return "", fmt.Errorf("timed out after %s", *timeout)
}

// Скачивание результата
func testOutput(name string) error {
	fmt.Println("\n[TEST] Testing /output/" + name + "...")

	resp, err := client.Get(*backendURL + "/output/" + name)
	if err != nil {
		return fmt.Errorf("download failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var doc models.MotionDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse motion data: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid motion data: %v", err)
	}

	fmt.Printf("✓ Motion data downloaded\n")
	fmt.Printf("  - Source: %s\n", doc.Metadata.SourceVideo)
	fmt.Printf("  - FPS: %.2f\n", doc.Metadata.FPS)
	fmt.Printf("  - Frames: %d (%d with a pose)\n", len(doc.Frames), doc.DetectedFrames())
	return nil
}

func main() {
	flag.Parse()

	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("MOTION CAPTURE - Backend Testing Client")
	fmt.Println("=" + strings.Repeat("=", 60))

	fmt.Println("\n[INFO] Make sure the Go backend is running on", *backendURL)
	fmt.Println("[INFO] Make sure the landmark detector is running")

	if err := testHealth(); err != nil {
		log.Printf("❌ Health Check failed: %v", err)
		os.Exit(1)
	}

	if *videoPath == "" {
		fmt.Println("\n[INFO] No -video given, skipping extraction tests")
		return
	}

	jobID, err := testUpload(*videoPath)
	if err != nil {
		log.Printf("❌ Upload failed: %v", err)
		os.Exit(1)
	}

	output, err := testProgress(jobID)
	if err != nil {
		log.Printf("❌ Extraction failed: %v", err)
		os.Exit(1)
	}

	if err := testOutput(output); err != nil {
		log.Printf("❌ Download failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✅ All tests completed successfully!")
	fmt.Println("=" + strings.Repeat("=", 60))
}
