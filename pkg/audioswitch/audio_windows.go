package audioswitch

import (
	"errors"
	"fmt"

	ole "github.com/go-ole/go-ole"
	wca "github.com/moutend/go-wca"
	"go.uber.org/zap"
)

// comSession holds a per-thread COM initialization plus the objects created under it
type comSession struct {
	logger *zap.SugaredLogger

	enumerator *wca.IMMDeviceEnumerator
	policy     *policyConfig

	directory *wcaDirectory
}

type wcaDirectory struct {
	logger     *zap.SugaredLogger
	enumerator *wca.IMMDeviceEnumerator
}

func newAudioSession(logger *zap.SugaredLogger) (AudioSession, error) {
	logger = logger.Named("session")

	// COM is initialized per thread, the caller is expected to hold a locked OS thread
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		const eFalse = 1
		oleError := &ole.OleError{}

		// S_FALSE means COM was already initialized on this thread, which still needs a matching CoUninitialize
		if errors.As(err, &oleError) && oleError.Code() == eFalse {
			logger.Debug("CoInitializeEx returned S_FALSE, COM already initialized on this thread")
		} else {
			logger.Warnw("Failed to call CoInitializeEx", "error", err)
			return nil, fmt.Errorf("call CoInitializeEx: %w", err)
		}
	}

	s := &comSession{logger: logger}

	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&s.enumerator,
	); err != nil {
		logger.Warnw("Failed to create device enumerator", "error", err)
		ole.CoUninitialize()
		return nil, &EnumerationError{Role: RoleOutput, Err: fmt.Errorf("create device enumerator: %w", err)}
	}

	policy, err := newPolicyConfig()
	if err != nil {
		logger.Warnw("Failed to create policy config client", "error", err)
		s.enumerator.Release()
		ole.CoUninitialize()
		return nil, fmt.Errorf("create policy config client: %w", err)
	}
	s.policy = policy

	s.directory = &wcaDirectory{
		logger:     logger.Named("directory"),
		enumerator: s.enumerator,
	}

	logger.Debug("Opened COM audio session")

	return s, nil
}

func (s *comSession) Directory() EndpointDirectory {
	return s.directory
}

func (s *comSession) Policy() EndpointPolicy {
	return s.policy
}

func (s *comSession) Close() error {
	s.policy.Release()
	s.enumerator.Release()
	ole.CoUninitialize()

	s.logger.Debug("Closed COM audio session")

	return nil
}

func dataFlow(role Role) uint32 {
	if role == RoleInput {
		return wca.ECapture
	}

	return wca.ERender
}

func (d *wcaDirectory) ListActive(role Role) ([]EndpointRef, error) {
	return d.list(role, wca.DEVICE_STATE_ACTIVE)
}

// hidden endpoints report DEVICE_STATE_DISABLED
func (d *wcaDirectory) ListAll(role Role) ([]EndpointRef, error) {
	return d.list(role, wca.DEVICE_STATE_ACTIVE|wca.DEVICE_STATE_DISABLED)
}

func (d *wcaDirectory) DefaultEndpoint(role Role) (string, error) {
	var device *wca.IMMDevice
	if err := d.enumerator.GetDefaultAudioEndpoint(dataFlow(role), wca.EConsole, &device); err != nil {
		return "", fmt.Errorf("get default %s endpoint: %w", role, err)
	}
	defer device.Release()

	var id string
	if err := device.GetId(&id); err != nil {
		return "", fmt.Errorf("get default %s endpoint id: %w", role, err)
	}

	return id, nil
}

func (d *wcaDirectory) list(role Role, stateMask uint32) ([]EndpointRef, error) {
	var collection *wca.IMMDeviceCollection
	if err := d.enumerator.EnumAudioEndpoints(dataFlow(role), stateMask, &collection); err != nil {
		d.logger.Warnw("Failed to enumerate audio endpoints", "role", role, "error", err)
		return nil, &EnumerationError{Role: role, Err: err}
	}
	defer collection.Release()

	var count uint32
	if err := collection.GetCount(&count); err != nil {
		return nil, &EnumerationError{Role: role, Err: fmt.Errorf("get endpoint count: %w", err)}
	}

	endpoints := make([]EndpointRef, 0, count)

	for i := uint32(0); i < count; i++ {
		endpoint, err := d.endpointAt(collection, i, role)
		if err != nil {
			return nil, &EnumerationError{Role: role, Err: err}
		}

		endpoints = append(endpoints, endpoint)
	}

	return endpoints, nil
}

func (d *wcaDirectory) endpointAt(collection *wca.IMMDeviceCollection, index uint32, role Role) (EndpointRef, error) {
	var device *wca.IMMDevice
	if err := collection.Item(index, &device); err != nil {
		return EndpointRef{}, fmt.Errorf("get endpoint %d: %w", index, err)
	}
	defer device.Release()

	var id string
	if err := device.GetId(&id); err != nil {
		return EndpointRef{}, fmt.Errorf("get endpoint %d id: %w", index, err)
	}

	endpoint := EndpointRef{ID: id, Role: role}

	// the name is cosmetic, an endpoint without one is still usable
	var propertyStore *wca.IPropertyStore
	if err := device.OpenPropertyStore(wca.STGM_READ, &propertyStore); err != nil {
		d.logger.Debugw("Failed to open endpoint property store", "id", id, "error", err)
		return endpoint, nil
	}
	defer propertyStore.Release()

	var value wca.PROPVARIANT
	if err := propertyStore.GetValue(&wca.PKEY_Device_FriendlyName, &value); err != nil {
		d.logger.Debugw("Failed to get endpoint friendly name", "id", id, "error", err)
		return endpoint, nil
	}

	endpoint.Name = value.String()

	return endpoint, nil
}
